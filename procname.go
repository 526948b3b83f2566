package legion

import (
	"os"
	"path/filepath"
)

// processName is cotyledon's get_process_name(): os.path.basename(sys.argv[0]).
func processName() string {
	if len(os.Args) == 0 {
		return ""
	}
	return filepath.Base(os.Args[0])
}
