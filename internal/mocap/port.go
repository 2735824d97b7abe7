package mocap

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// readTimeout bounds each port read so Close and the stale watchdog are not
// held up by a silent feed.
const readTimeout = 100 * time.Millisecond

var openPortFn = openPort

func openPort(device string, baud int) (io.ReadCloser, error) {
	p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}
