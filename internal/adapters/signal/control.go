package signal

import "github.com/dkeye/Parley/internal/core"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendControl(conn, core.EnvelopePong, nil)
}
