package legion

import (
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/tuxdude/zzzlogi"
)

// notifyReadyOnce sends a best-effort one-shot "ready" notification to the
// host init system and clears readinessSocketEnv so a later reinitialization
// in the same process can't send a duplicate. This is cotyledon's
// _systemd_notify_once; the wire format it hand-rolls (connect a unix
// datagram socket named by NOTIFY_SOCKET, translating a leading '@' to the
// abstract namespace, send "READY=1") is byte-for-byte the systemd
// sd_notify protocol, so legion delegates to go-systemd's daemon package
// instead of reimplementing socket framing.
func notifyReadyOnce(log zzzlogi.Logger) {
	log = orNop(log)

	if os.Getenv(readinessSocketEnv) == "" {
		return
	}

	_, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Debugf("systemd readiness notification failed: %v", err)
	}
	os.Unsetenv(readinessSocketEnv)
}
