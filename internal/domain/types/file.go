package types

// FileTransferDirection reports whether the local client is sending or
// receiving a transfer.
type FileTransferDirection uint8

const (
	DirectionSend FileTransferDirection = iota
	DirectionRecv
)

// DefaultChunkSize is the plaintext chunk size used by the file transfer
// engine: 64 KiB.
const DefaultChunkSize = 64 * 1024

// WindowSize is the number of unacknowledged chunks a sender may have in
// flight before it must wait for an ack.
const WindowSize = 8

// FileTransfer tracks one offer-to-completion file exchange. It is created
// on offer and destroyed on completion, rejection, or error.
type FileTransfer struct {
	ID        TransferID
	Direction FileTransferDirection
	Scope     Scope

	Filename  string
	TotalSize uint64
	ChunkSize uint32

	NextChunkIndex uint32 // sender: next index to send; receiver: next expected index
	LastAckedIndex uint32 // sender-side flow control state

	Checksum [32]byte // SHA-256 of the full plaintext file, set on offer

	// TempPath is the receiver-side path chunks are written to before the
	// atomic rename to the final destination on FileDone.
	TempPath string
}

// TotalChunks returns the number of chunks the transfer is split into.
func (f FileTransfer) TotalChunks() uint32 {
	if f.ChunkSize == 0 {
		return 0
	}
	n := f.TotalSize / uint64(f.ChunkSize)
	if f.TotalSize%uint64(f.ChunkSize) != 0 {
		n++
	}
	return uint32(n)
}
