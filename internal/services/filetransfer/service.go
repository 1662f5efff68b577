package filetransfer

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"wsp/internal/codec"
	"wsp/internal/domain"
	"wsp/internal/events"
)

// retransmitTimeout is how long a sender waits for progress before
// rewinding its send window back to the last acknowledged index.
const retransmitTimeout = 5 * time.Second

// transferState is the service's private bookkeeping for one transfer,
// embedding the domain record exposed via Transfers().
type transferState struct {
	domain.FileTransfer

	peer     domain.PublicKey // DM counterparty, or the offerer for a received transfer
	group    domain.GroupService
	file     *os.File // sender: source file; receiver: preallocated temp file
	accepted bool     // sender: receiver has sent FileAck{0}

	lastProgressAt time.Time
	done           bool
	failed         bool
}

// Service implements domain.FileTransferService.
type Service struct {
	selfPub   domain.PublicKey
	session   domain.SessionService
	group     domain.GroupService // may be nil if group transfers are unused
	bus       *events.Bus
	logger    *zap.Logger
	targetDir string // default destination directory if AcceptFile's destDir is empty

	mu        sync.Mutex
	transfers map[domain.TransferID]*transferState
}

// New returns a file-transfer engine. targetDir is the default download
// directory used when AcceptFile is called with an empty destDir.
func New(selfPub domain.PublicKey, session domain.SessionService, group domain.GroupService, targetDir string, bus *events.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		selfPub:   selfPub,
		session:   session,
		group:     group,
		bus:       bus,
		logger:    logger,
		targetDir: targetDir,
		transfers: make(map[domain.TransferID]*transferState),
	}
}

// OfferFile announces a new transfer of the file at path to scope and
// returns its transfer-id. Chunk streaming begins once the recipient
// accepts.
func (s *Service) OfferFile(ctx context.Context, scope domain.Scope, path string) (domain.TransferID, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.TransferID{}, fmt.Errorf("filetransfer: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return domain.TransferID{}, err
	}
	sum, err := sha256File(f)
	if err != nil {
		_ = f.Close()
		return domain.TransferID{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return domain.TransferID{}, err
	}

	var id domain.TransferID
	if _, err := rand.Read(id[:]); err != nil {
		_ = f.Close()
		return domain.TransferID{}, fmt.Errorf("filetransfer: generate transfer id: %w", err)
	}

	state := &transferState{
		FileTransfer: domain.FileTransfer{
			ID:        id,
			Direction: domain.DirectionSend,
			Scope:     scope,
			Filename:  filepath.Base(path),
			TotalSize: uint64(info.Size()),
			ChunkSize: domain.DefaultChunkSize,
			Checksum:  sum,
		},
		file:           f,
		lastProgressAt: time.Now(),
	}
	if scope.Kind == domain.ScopeDM {
		state.peer = scope.Peer
	}

	s.mu.Lock()
	s.transfers[id] = state
	s.mu.Unlock()

	offer := &domain.FileOfferMsg{
		TransferID: id,
		Filename:   state.Filename,
		TotalSize:  state.TotalSize,
		ChunkSize:  state.ChunkSize,
		Checksum:   state.Checksum,
	}
	if scope.Kind == domain.ScopeRoom {
		offer.Room = scope.Room
	}
	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerFileOffer, FileOffer: offer})
	if err != nil {
		return id, err
	}
	if err := s.sendToScope(ctx, scope, payload); err != nil {
		return id, err
	}

	go s.watchRetransmit(ctx, id)
	return id, nil
}

// AcceptFile preallocates the destination temp file and acknowledges the
// offer, triggering the sender's chunk stream.
func (s *Service) AcceptFile(ctx context.Context, id domain.TransferID, destDir string) error {
	s.mu.Lock()
	state, ok := s.transfers[id]
	s.mu.Unlock()
	if !ok {
		return domain.ErrUnknownTransfer
	}
	if destDir == "" {
		destDir = s.targetDir
	}
	if destDir == "" {
		destDir = "."
	}
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return fmt.Errorf("filetransfer: create destination dir: %w", err)
	}

	tmp, err := os.CreateTemp(destDir, ".wsp-download-*")
	if err != nil {
		return fmt.Errorf("filetransfer: create temp file: %w", err)
	}
	if err := tmp.Truncate(int64(state.TotalSize)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("filetransfer: preallocate temp file: %w", err)
	}

	s.mu.Lock()
	state.file = tmp
	state.TempPath = tmp.Name()
	s.mu.Unlock()

	return s.sendAck(ctx, state, 0)
}

// RejectFile declines a pending incoming offer.
func (s *Service) RejectFile(ctx context.Context, id domain.TransferID) error {
	s.mu.Lock()
	state, ok := s.transfers[id]
	if ok {
		delete(s.transfers, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrUnknownTransfer
	}

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerFileReject, FileReject: &domain.FileRejectMsg{TransferID: id}})
	if err != nil {
		return err
	}
	return s.sendToPeer(ctx, state.peer, payload)
}

// CancelFile aborts an in-progress transfer from either side.
func (s *Service) CancelFile(ctx context.Context, id domain.TransferID) error {
	s.mu.Lock()
	state, ok := s.transfers[id]
	if ok {
		state.failed = true
		if state.file != nil {
			_ = state.file.Close()
		}
		if state.Direction == domain.DirectionRecv && state.TempPath != "" {
			_ = os.Remove(state.TempPath)
		}
		delete(s.transfers, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrUnknownTransfer
	}
	return nil
}

// Transfers returns a stable-ordered snapshot of active transfers.
func (s *Service) Transfers() []domain.FileTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FileTransfer, 0, len(s.transfers))
	for _, st := range s.transfers {
		out = append(out, st.FileTransfer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// HandleInner dispatches a decrypted FileOffer/FileChunk/FileAck/FileDone/
// FileReject inner message.
func (s *Service) HandleInner(ctx context.Context, from domain.PublicKey, msg domain.InnerMessage) error {
	switch msg.Kind {
	case domain.InnerFileOffer:
		return s.handleOffer(from, msg.FileOffer)
	case domain.InnerFileChunk:
		return s.handleChunk(ctx, from, msg.FileChunk)
	case domain.InnerFileAck:
		return s.handleAck(ctx, msg.FileAck)
	case domain.InnerFileDone:
		return s.handleDone(msg.FileDone)
	case domain.InnerFileReject:
		return s.handleReject(msg.FileReject)
	}
	return nil
}

func (s *Service) handleOffer(from domain.PublicKey, offer *domain.FileOfferMsg) error {
	if offer == nil {
		return nil
	}
	scope := domain.Scope{Kind: domain.ScopeDM, Peer: from}
	if offer.Room != (domain.RoomID{}) {
		scope = domain.Scope{Kind: domain.ScopeRoom, Room: offer.Room}
	}

	state := &transferState{
		FileTransfer: domain.FileTransfer{
			ID:        offer.TransferID,
			Direction: domain.DirectionRecv,
			Scope:     scope,
			Filename:  offer.Filename,
			TotalSize: offer.TotalSize,
			ChunkSize: offer.ChunkSize,
			Checksum:  offer.Checksum,
		},
		peer:           from,
		lastProgressAt: time.Now(),
	}
	s.mu.Lock()
	s.transfers[offer.TransferID] = state
	s.mu.Unlock()

	// Repurposes the progress event with BytesDone == 0 to signal a new,
	// not-yet-accepted offer; the UI distinguishes it from later progress
	// by transfer-id novelty.
	s.bus.Emit(events.Event{
		Kind: events.KindFileProgress, At: time.Now(), Peer: from,
		TransferID: offer.TransferID, BytesDone: 0, BytesTotal: offer.TotalSize,
	})
	return nil
}

func (s *Service) handleChunk(ctx context.Context, from domain.PublicKey, chunk *domain.FileChunkMsg) error {
	if chunk == nil {
		return nil
	}
	s.mu.Lock()
	state, ok := s.transfers[chunk.TransferID]
	if !ok || state.Direction != domain.DirectionRecv || state.file == nil {
		s.mu.Unlock()
		return nil
	}
	if _, err := state.file.WriteAt(chunk.Data, int64(chunk.Index)*int64(state.ChunkSize)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("filetransfer: write chunk %d: %w", chunk.Index, err)
	}
	if chunk.Index+1 > state.NextChunkIndex {
		state.NextChunkIndex = chunk.Index + 1
	}
	state.lastProgressAt = time.Now()
	shouldAck := (chunk.Index+1)%domain.WindowSize == 0
	totalSize := state.TotalSize
	chunkSize := uint64(state.ChunkSize)
	received := uint64(state.NextChunkIndex) * chunkSize
	s.mu.Unlock()

	if received > totalSize {
		received = totalSize
	}
	s.bus.Emit(events.Event{Kind: events.KindFileProgress, At: time.Now(), Peer: from, TransferID: chunk.TransferID, BytesDone: received, BytesTotal: totalSize})

	if shouldAck {
		return s.sendAck(ctx, state, chunk.Index)
	}
	return nil
}

func (s *Service) handleAck(ctx context.Context, ack *domain.FileAckMsg) error {
	if ack == nil {
		return nil
	}
	s.mu.Lock()
	state, ok := s.transfers[ack.TransferID]
	if !ok || state.Direction != domain.DirectionSend {
		s.mu.Unlock()
		return nil
	}
	if ack.Index == 0 {
		state.accepted = true
	}
	if ack.Index >= state.LastAckedIndex || ack.Index == 0 {
		state.LastAckedIndex = ack.Index
	}
	state.lastProgressAt = time.Now()
	s.mu.Unlock()

	return s.sendWindow(ctx, ack.TransferID)
}

func (s *Service) handleDone(done *domain.FileDoneMsg) error {
	if done == nil {
		return nil
	}
	s.mu.Lock()
	state, ok := s.transfers[done.TransferID]
	if !ok || state.Direction != domain.DirectionRecv {
		s.mu.Unlock()
		return nil
	}
	delete(s.transfers, done.TransferID)
	s.mu.Unlock()

	if state.file != nil {
		_ = state.file.Close()
	}
	ok2, err := verifyChecksum(state.TempPath, state.Checksum)
	if err != nil || !ok2 {
		_ = os.Remove(state.TempPath)
		s.bus.Emit(events.Event{Kind: events.KindFileFailed, At: time.Now(), Peer: state.peer, TransferID: state.ID})
		return nil
	}

	finalPath := filepath.Join(filepath.Dir(state.TempPath), state.Filename)
	if err := os.Rename(state.TempPath, finalPath); err != nil {
		s.bus.Emit(events.Event{Kind: events.KindFileFailed, At: time.Now(), Peer: state.peer, TransferID: state.ID})
		return nil
	}
	s.bus.Emit(events.Event{Kind: events.KindFileComplete, At: time.Now(), Peer: state.peer, TransferID: state.ID})
	return nil
}

func (s *Service) handleReject(reject *domain.FileRejectMsg) error {
	if reject == nil {
		return nil
	}
	s.mu.Lock()
	state, ok := s.transfers[reject.TransferID]
	if ok {
		delete(s.transfers, reject.TransferID)
	}
	s.mu.Unlock()
	if ok && state.file != nil {
		_ = state.file.Close()
	}
	s.bus.Emit(events.Event{Kind: events.KindFileFailed, At: time.Now(), TransferID: reject.TransferID})
	return nil
}

// sendWindow streams up to WindowSize unacknowledged chunks, sending
// FileDone once the last chunk has gone out.
func (s *Service) sendWindow(ctx context.Context, id domain.TransferID) error {
	for {
		s.mu.Lock()
		state, ok := s.transfers[id]
		if !ok || state.Direction != domain.DirectionSend || !state.accepted || state.failed {
			s.mu.Unlock()
			return nil
		}
		total := state.TotalChunks()
		if state.NextChunkIndex >= total {
			s.mu.Unlock()
			if !state.done {
				return s.sendDone(ctx, id)
			}
			return nil
		}
		if state.NextChunkIndex-state.LastAckedIndex >= domain.WindowSize {
			s.mu.Unlock()
			return nil
		}
		idx := state.NextChunkIndex
		buf := make([]byte, state.ChunkSize)
		n, err := state.file.ReadAt(buf, int64(idx)*int64(state.ChunkSize))
		if err != nil && err != io.EOF {
			s.mu.Unlock()
			return fmt.Errorf("filetransfer: read chunk %d: %w", idx, err)
		}
		buf = buf[:n]
		scope := state.Scope
		state.NextChunkIndex++
		s.mu.Unlock()

		payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerFileChunk, FileChunk: &domain.FileChunkMsg{TransferID: id, Index: idx, Data: buf}})
		if err != nil {
			return err
		}
		if err := s.sendToScope(ctx, scope, payload); err != nil {
			return err
		}
	}
}

func (s *Service) sendDone(ctx context.Context, id domain.TransferID) error {
	s.mu.Lock()
	state, ok := s.transfers[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	state.done = true
	scope := state.Scope
	s.mu.Unlock()

	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerFileDone, FileDone: &domain.FileDoneMsg{TransferID: id}})
	if err != nil {
		return err
	}
	return s.sendToScope(ctx, scope, payload)
}

func (s *Service) sendAck(ctx context.Context, state *transferState, index uint32) error {
	payload, err := codec.EncodeInner(domain.InnerMessage{Kind: domain.InnerFileAck, FileAck: &domain.FileAckMsg{TransferID: state.ID, Index: index}})
	if err != nil {
		return err
	}
	return s.sendToPeer(ctx, state.peer, payload)
}

func (s *Service) sendToPeer(ctx context.Context, peer domain.PublicKey, payload []byte) error {
	ciphertext, err := s.session.EncryptForPeer(peer, payload)
	if err != nil {
		return err
	}
	return s.session.SendDirect(ctx, peer, ciphertext)
}

func (s *Service) sendToScope(ctx context.Context, scope domain.Scope, payload []byte) error {
	if scope.Kind == domain.ScopeDM {
		return s.sendToPeer(ctx, scope.Peer, payload)
	}
	if s.group == nil {
		return fmt.Errorf("filetransfer: room transfer requested but no group manager is wired")
	}
	return s.group.Fanout(ctx, scope.Room, payload)
}

// watchRetransmit periodically rewinds a sender's window back to the last
// acknowledged index if no progress has been made for retransmitTimeout.
func (s *Service) watchRetransmit(ctx context.Context, id domain.TransferID) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			state, ok := s.transfers[id]
			if !ok || state.Direction != domain.DirectionSend || state.done || state.failed {
				s.mu.Unlock()
				return
			}
			stalled := state.accepted && state.NextChunkIndex > state.LastAckedIndex &&
				time.Since(state.lastProgressAt) > retransmitTimeout
			if stalled {
				state.NextChunkIndex = state.LastAckedIndex
				state.lastProgressAt = time.Now()
			}
			s.mu.Unlock()
			if stalled {
				if err := s.sendWindow(ctx, id); err != nil {
					s.logger.Warn("filetransfer: retransmit failed", zap.Error(err))
				}
			}
		}
	}
}

func sha256File(f *os.File) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, fmt.Errorf("filetransfer: hash file: %w", err)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func verifyChecksum(path string, want [32]byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	got, err := sha256File(f)
	if err != nil {
		return false, err
	}
	return got == want, nil
}

var _ domain.FileTransferService = (*Service)(nil)
