package broker

import "github.com/pigato/broker/internal/wire"

// Outbound frame builders. Each returns the frame list passed to
// transport.Channel.Send — the destination identity travels alongside,
// never as a frame.

func wireReplyFrame(cmd byte, rid string, payload [][]byte) [][]byte {
	frames := [][]byte{wire.ClientTag, {cmd}, nil, []byte(rid)}
	return append(frames, payload...)
}

func wireDispatchFrame(clientID, service, rid string, payload [][]byte) [][]byte {
	frames := [][]byte{wire.WorkerTag, {wire.CmdRequest}, []byte(clientID), []byte(service), nil, []byte(rid)}
	return append(frames, payload...)
}

func wireWorkerHeartbeat() [][]byte {
	return [][]byte{wire.WorkerTag, {wire.CmdHeartbeat}}
}

func wireClientHeartbeatToWorker(clientID, rid string) [][]byte {
	return [][]byte{wire.WorkerTag, {wire.CmdHeartbeat}, []byte(clientID), []byte(rid)}
}

func wireDisconnect() [][]byte {
	return [][]byte{wire.WorkerTag, {wire.CmdDisconnect}}
}
