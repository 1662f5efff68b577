package group

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"wsp/internal/codec"
	"wsp/internal/domain"
	"wsp/internal/events"
)

// Service implements domain.GroupService.
type Service struct {
	selfPub   domain.PublicKey
	session   domain.SessionService
	transport domain.RelayTransport
	store     domain.RoomStore // may be nil
	bus       *events.Bus
	logger    *zap.Logger

	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
}

// New returns a group manager. store may be nil to disable local room
// persistence across restarts.
func New(selfPub domain.PublicKey, session domain.SessionService, transport domain.RelayTransport, store domain.RoomStore, bus *events.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		selfPub:   selfPub,
		session:   session,
		transport: transport,
		store:     store,
		bus:       bus,
		logger:    logger,
		rooms:     make(map[domain.RoomID]*domain.Room),
	}
	if store != nil {
		if rooms, err := store.LoadRooms(); err != nil {
			logger.Warn("group: failed to load persisted rooms", zap.Error(err))
		} else {
			for _, r := range rooms {
				room := r
				s.rooms[room.ID] = &room
			}
		}
	}
	return s
}

// CreateRoom generates a new room-id, seeds membership with self, and joins
// it on the relay.
func (s *Service) CreateRoom(ctx context.Context, name string) (domain.Room, error) {
	var id domain.RoomID
	if _, err := rand.Read(id[:]); err != nil {
		return domain.Room{}, fmt.Errorf("group: generate room id: %w", err)
	}
	room := domain.Room{ID: id, Name: name, Creator: s.selfPub, Members: []domain.PublicKey{s.selfPub}}

	s.mu.Lock()
	s.rooms[id] = &room
	s.mu.Unlock()
	s.persist(room)

	if err := s.sendJoin(ctx, id); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// InviteToRoom sends the current member list to peer as an encrypted DM;
// peer is not added to the local roster until it accepts and announces
// itself via GroupMemberAdd.
func (s *Service) InviteToRoom(ctx context.Context, room domain.RoomID, peer domain.PublicKey) error {
	r, ok := s.Room(room)
	if !ok {
		return domain.ErrUnknownRoom
	}
	payload, err := codec.EncodeInner(domain.InnerMessage{
		Kind: domain.InnerGroupInvite,
		GroupInvite: &domain.GroupInviteMsg{
			RoomID:  r.ID,
			Name:    r.Name,
			Members: r.Members,
		},
	})
	if err != nil {
		return err
	}
	ciphertext, err := s.session.EncryptForPeer(peer, payload)
	if err != nil {
		return err
	}
	return s.session.SendDirect(ctx, peer, ciphertext)
}

// AcceptInvite stores the room, joins it on the relay, and announces the
// local member's arrival to everyone already in the room.
func (s *Service) AcceptInvite(ctx context.Context, invite domain.GroupInviteMsg) (domain.Room, error) {
	room := domain.Room{ID: invite.RoomID, Name: invite.Name, Members: append([]domain.PublicKey{}, invite.Members...)}
	room.AddMember(s.selfPub)

	s.mu.Lock()
	s.rooms[room.ID] = &room
	s.mu.Unlock()
	s.persist(room)

	if err := s.sendJoin(ctx, room.ID); err != nil {
		return domain.Room{}, err
	}

	addPayload, err := codec.EncodeInner(domain.InnerMessage{
		Kind:           domain.InnerGroupMemberAdd,
		GroupMemberAdd: &domain.GroupMemberAddMsg{RoomID: room.ID, PublicKey: s.selfPub},
	})
	if err != nil {
		return room, err
	}
	if err := s.Fanout(ctx, room.ID, addPayload); err != nil {
		s.logger.Warn("group: member-add announcement incomplete", zap.Error(err))
	}
	return room, nil
}

// LeaveRoom announces departure, leaves the relay room, and drops local
// state.
func (s *Service) LeaveRoom(ctx context.Context, room domain.RoomID) error {
	if _, ok := s.Room(room); !ok {
		return domain.ErrUnknownRoom
	}
	leavePayload, err := codec.EncodeInner(domain.InnerMessage{
		Kind:             domain.InnerGroupMemberLeave,
		GroupMemberLeave: &domain.GroupMemberLeaveMsg{RoomID: room, PublicKey: s.selfPub},
	})
	if err == nil {
		if err := s.Fanout(ctx, room, leavePayload); err != nil {
			s.logger.Warn("group: leave announcement incomplete", zap.Error(err))
		}
	}
	if err := s.sendLeave(ctx, room); err != nil {
		s.logger.Warn("group: relay leave failed", zap.Error(err))
	}

	s.mu.Lock()
	delete(s.rooms, room)
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.DeleteRoom(room); err != nil {
			s.logger.Warn("group: failed to delete persisted room", zap.Error(err))
		}
	}
	return nil
}

// Fanout encrypts plaintext independently per current member (other than
// self) and sends the resulting ciphertexts as separate RoomCipher
// envelopes; the relay's room broadcast then delivers every ciphertext to
// every other member, each of whom can open only the one meant for them.
func (s *Service) Fanout(ctx context.Context, room domain.RoomID, plaintext []byte) error {
	r, ok := s.Room(room)
	if !ok {
		return domain.ErrUnknownRoom
	}

	var firstErr error
	for _, member := range r.Members {
		if member == s.selfPub {
			continue
		}
		ciphertext, err := s.session.EncryptForPeer(member, plaintext)
		if err != nil {
			s.logger.Warn("group: encrypt for member failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		env := domain.Envelope{
			Kind:        domain.KindRoomCipher,
			SessionFrom: s.transport.SessionID(),
			Room:        room,
			Payload:     ciphertext,
		}
		if err := s.transport.Send(ctx, env); err != nil {
			s.logger.Warn("group: send to member failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Rooms returns a stable-ordered snapshot of locally known rooms.
func (s *Service) Rooms() []domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// Room returns the locally known Room for id, if any.
func (s *Service) Room(id domain.RoomID) (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	return *r, true
}

// EnsureMember adds from to room's roster if it is new, the same
// reconciliation GroupMemberAdd drives, so that any room-scoped traffic
// from a member the relay's blind fan-out delivered but the local roster
// never recorded still heals the roster rather than being silently
// accepted from a "stranger".
func (s *Service) EnsureMember(room domain.RoomID, from domain.PublicKey) {
	s.mu.RLock()
	r, ok := s.rooms[room]
	known := ok && r.HasMember(from)
	s.mu.RUnlock()
	if !ok || known {
		return
	}
	s.reconcile(room, from, true)
}

// HandleInner processes GroupInvite (surfaced to the UI so the user can
// decide whether to AcceptInvite), and GroupMemberAdd/GroupMemberLeave
// (roster reconciliation).
func (s *Service) HandleInner(ctx context.Context, from domain.PublicKey, msg domain.InnerMessage) error {
	switch msg.Kind {
	case domain.InnerGroupInvite:
		if msg.GroupInvite == nil {
			return nil
		}
		s.bus.Emit(events.Event{Kind: events.KindGroupMembershipChanged, At: time.Now(), Peer: from, Room: msg.GroupInvite.RoomID})
	case domain.InnerGroupMemberAdd:
		if msg.GroupMemberAdd == nil {
			return nil
		}
		s.reconcile(msg.GroupMemberAdd.RoomID, msg.GroupMemberAdd.PublicKey, true)
	case domain.InnerGroupMemberLeave:
		if msg.GroupMemberLeave == nil {
			return nil
		}
		s.reconcile(msg.GroupMemberLeave.RoomID, msg.GroupMemberLeave.PublicKey, false)
	}
	return nil
}

func (s *Service) reconcile(room domain.RoomID, pk domain.PublicKey, add bool) {
	s.mu.Lock()
	r, ok := s.rooms[room]
	if !ok {
		s.mu.Unlock()
		return
	}
	if add {
		r.AddMember(pk)
	} else {
		r.RemoveMember(pk)
	}
	snapshot := *r
	s.mu.Unlock()

	s.persist(snapshot)
	s.bus.Emit(events.Event{Kind: events.KindGroupMembershipChanged, At: time.Now(), Peer: pk, Room: room})
}

func (s *Service) persist(room domain.Room) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRoom(room); err != nil {
		s.logger.Warn("group: failed to persist room", zap.Error(err))
	}
}

func (s *Service) sendJoin(ctx context.Context, room domain.RoomID) error {
	return s.transport.Send(ctx, domain.Envelope{Kind: domain.KindJoinRoom, Room: room, SessionFrom: s.transport.SessionID()})
}

func (s *Service) sendLeave(ctx context.Context, room domain.RoomID) error {
	return s.transport.Send(ctx, domain.Envelope{Kind: domain.KindLeaveRoom, Room: room, SessionFrom: s.transport.SessionID()})
}

var _ domain.GroupService = (*Service)(nil)
