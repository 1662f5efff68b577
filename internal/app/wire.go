package app

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"wsp/internal/domain"
	"wsp/internal/events"
	"wsp/internal/relay"
	"wsp/internal/services/filetransfer"
	"wsp/internal/services/group"
	"wsp/internal/services/identity"
	"wsp/internal/services/screenshare"
	"wsp/internal/services/session"
	"wsp/internal/services/voice"
	"wsp/internal/store"
)

// downloadsDirName is where accepted file transfers land by default.
const downloadsDirName = "downloads"

// Wire bundles the stores, transport, and services built from a Config
// plus a loaded identity, mirroring the teacher's internal/app/wire.go
// split between Config (flags) and Wire (the constructed graph).
type Wire struct {
	Identity domain.IdentityService

	HistoryStore domain.HistoryStore // nil unless Config.SaveHistory
	RoomStore    domain.RoomStore

	Transport domain.RelayTransport
	Bus       *events.Bus

	Session     domain.SessionService
	Group       domain.GroupService
	Files       domain.FileTransferService
	Voice       domain.VoiceService
	ScreenShare domain.ScreenShareService
}

// NewWire constructs the full dependency graph for id, the already-loaded
// local identity. The relay connection itself is not dialed here; callers
// invoke Wire.Session.Run to connect and start the dispatch loop.
func NewWire(cfg Config, id domain.Identity) (*Wire, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("app: create home dir: %w", err)
	}

	identityStore := store.NewIdentityStore(filepath.Join(cfg.Home, "identity"))
	roomStore := store.NewRoomStore(filepath.Join(cfg.Home, "rooms"))

	var historyStore domain.HistoryStore
	if cfg.SaveHistory {
		historyStore = store.NewHistoryStore(filepath.Join(cfg.Home, fmt.Sprintf("history-%x", id.Pub[:8])))
	}

	bufSize := cfg.EventBuf
	if bufSize <= 0 {
		bufSize = defaultEventBuf
	}
	bus := events.NewBus(bufSize)

	transport := relay.NewClient(cfg.RelayURL, logger)

	sessionSvc := session.New(id, transport, bus, historyStore, logger)
	groupSvc := group.New(id.Pub, sessionSvc, transport, roomStore, bus, logger)

	downloadsDir := filepath.Join(cfg.Home, downloadsDirName)
	filesSvc := filetransfer.New(id.Pub, sessionSvc, groupSvc, downloadsDir, bus, logger)
	voiceSvc := voice.New(id.Pub, sessionSvc, groupSvc, nil, nil, bus, logger)
	screenShareSvc := screenshare.New(id.Pub, sessionSvc, nil, nil, bus, logger)

	sessionSvc.SetHandlers(session.Handlers{Group: groupSvc, File: filesSvc, Voice: voiceSvc, ScreenShare: screenShareSvc})

	return &Wire{
		Identity:     identity.New(identityStore),
		HistoryStore: historyStore,
		RoomStore:    roomStore,
		Transport:    transport,
		Bus:          bus,
		Session:      sessionSvc,
		Group:        groupSvc,
		Files:        filesSvc,
		Voice:        voiceSvc,
		ScreenShare:  screenShareSvc,
	}, nil
}
