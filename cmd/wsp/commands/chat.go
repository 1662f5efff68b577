package commands

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"wsp/internal/app"
	"wsp/internal/domain"
	"wsp/internal/events"
)

func chatCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Connect to a relay and start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if relayURL == "" {
				return fmt.Errorf("--relay is required")
			}
			return runChat(save)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "persist an encrypted local history log")
	return cmd
}

// runChat loads the local identity, builds the dependency graph, and
// drives a minimal line-oriented command loop against it. A full terminal
// UI is out of scope here; this is the wiring surface a real UI would sit
// on top of.
func runChat(save bool) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	idsvc, err := loadIdentityService()
	if err != nil {
		return err
	}
	id, err := idsvc.LoadIdentity(passphrase)
	if err != nil {
		return err
	}

	h, err := resolveHome()
	if err != nil {
		return err
	}

	wire, err := app.NewWire(app.Config{
		Home:        h,
		RelayURL:    relayURL,
		SaveHistory: save,
		Logger:      logger,
	}, id)
	if err != nil {
		return err
	}
	a := app.New(id, wire, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- a.Run(ctx) }()

	go printEvents(wire.Bus)

	fmt.Printf("Connected as %s. Type /help for commands, /quit to exit.\n", id.Pub)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			cancel()
			break
		}
		if err := dispatchLine(ctx, a, line); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}

	cancel()
	<-runErrCh
	return nil
}

// printEvents renders core-emitted events to stdout until bus is closed or
// the process exits.
func printEvents(bus *events.Bus) {
	for ev := range bus.Events() {
		switch ev.Kind {
		case events.KindMessageReceived:
			fmt.Printf("\n[%s] %s\n", ev.Peer, ev.Text)
		case events.KindPeerJoined:
			fmt.Printf("\n* %s joined\n", ev.Peer)
		case events.KindNicknameChanged:
			fmt.Printf("\n* %s is now known as %s\n", ev.Peer, ev.Nickname)
		case events.KindFileProgress:
			fmt.Printf("\n* transfer %s: %d/%d bytes\n", ev.TransferID, ev.BytesDone, ev.BytesTotal)
		case events.KindFileComplete:
			fmt.Printf("\n* transfer %s complete\n", ev.TransferID)
		case events.KindFileFailed:
			fmt.Printf("\n* transfer %s failed: %v\n", ev.TransferID, ev.Err)
		case events.KindCallStateChanged:
			fmt.Printf("\n* call %s: %s\n", ev.CallID, ev.CallState)
		case events.KindGroupMembershipChanged:
			fmt.Printf("\n* room %s membership changed (peer %s)\n", ev.Room, ev.Peer)
		case events.KindScreenShareStateChanged:
			fmt.Printf("\n* screen share with %s: %s\n", ev.Peer, ev.ScreenShareState)
		case events.KindError:
			fmt.Printf("\n! %v\n", ev.Err)
		default:
			fmt.Printf("\n* unsupported event (kind %d)\n", ev.UnknownKind)
		}
	}
}

func dispatchLine(ctx context.Context, a *app.App, line string) error {
	fields := strings.Fields(line)
	cmdName, rest := fields[0], fields[1:]

	switch cmdName {
	case "/help":
		printHelp()
		return nil
	case "/peers":
		for _, p := range a.Wire.Session.Peers() {
			fmt.Printf("%s  %s\n", p.PublicKey, p.Nickname)
		}
		return nil
	case "/nick":
		if len(rest) != 1 {
			return fmt.Errorf("usage: /nick <name>")
		}
		return a.Wire.Session.SetNickname(ctx, rest[0])
	case "/msg":
		if len(rest) < 2 {
			return fmt.Errorf("usage: /msg <peer-hex> <text>")
		}
		peer, err := parsePublicKey(rest[0])
		if err != nil {
			return err
		}
		return a.Wire.Session.SendChat(ctx, peer, strings.Join(rest[1:], " "))
	case "/history":
		lines, err := a.Wire.Session.LoadHistory()
		if err != nil {
			return err
		}
		for _, l := range lines {
			dir := "<-"
			if l.Entry.Outbound {
				dir = "->"
			}
			fmt.Printf("%s %s %s %s\n", l.At.Format("15:04:05"), dir, l.Entry.Peer, l.Entry.Text)
		}
		return nil
	case "/safety":
		if len(rest) != 1 {
			return fmt.Errorf("usage: /safety <peer-hex>")
		}
		peer, err := parsePublicKey(rest[0])
		if err != nil {
			return err
		}
		sn, err := a.Wire.Session.SafetyNumber(peer)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n", sn.Digits, sn.Emoji)
		return nil
	case "/room":
		if len(rest) != 1 {
			return fmt.Errorf("usage: /room <name>")
		}
		room, err := a.Wire.Group.CreateRoom(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("room %s created\n", room.ID)
		return nil
	case "/rooms":
		for _, r := range a.Wire.Group.Rooms() {
			fmt.Printf("%s  %s  %d members\n", r.ID, r.Name, len(r.Members))
		}
		return nil
	case "/invite":
		if len(rest) != 2 {
			return fmt.Errorf("usage: /invite <room-hex> <peer-hex>")
		}
		room, err := parseRoomID(rest[0])
		if err != nil {
			return err
		}
		peer, err := parsePublicKey(rest[1])
		if err != nil {
			return err
		}
		return a.Wire.Group.InviteToRoom(ctx, room, peer)
	case "/leave":
		if len(rest) != 1 {
			return fmt.Errorf("usage: /leave <room-hex>")
		}
		room, err := parseRoomID(rest[0])
		if err != nil {
			return err
		}
		return a.Wire.Group.LeaveRoom(ctx, room)
	case "/roommsg":
		if len(rest) < 2 {
			return fmt.Errorf("usage: /roommsg <room-hex> <text>")
		}
		room, err := parseRoomID(rest[0])
		if err != nil {
			return err
		}
		return a.Wire.Group.Fanout(ctx, room, []byte(strings.Join(rest[1:], " ")))
	case "/send":
		if len(rest) != 2 {
			return fmt.Errorf("usage: /send <peer-hex> <path>")
		}
		peer, err := parsePublicKey(rest[0])
		if err != nil {
			return err
		}
		id, err := a.Wire.Files.OfferFile(ctx, domain.Scope{Kind: domain.ScopeDM, Peer: peer}, rest[1])
		if err != nil {
			return err
		}
		fmt.Printf("offered transfer %s\n", id)
		return nil
	case "/files":
		for _, t := range a.Wire.Files.Transfers() {
			fmt.Printf("%s  %s  %d/%d\n", t.ID, t.Filename, t.NextChunkIndex, t.TotalChunks())
		}
		return nil
	case "/accept-file":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("usage: /accept-file <transfer-hex> [dest-dir]")
		}
		id, err := parseTransferID(rest[0])
		if err != nil {
			return err
		}
		dest := "."
		if len(rest) == 2 {
			dest = rest[1]
		}
		return a.Wire.Files.AcceptFile(ctx, id, dest)
	case "/reject-file":
		if len(rest) != 1 {
			return fmt.Errorf("usage: /reject-file <transfer-hex>")
		}
		id, err := parseTransferID(rest[0])
		if err != nil {
			return err
		}
		return a.Wire.Files.RejectFile(ctx, id)
	case "/cancel-file":
		if len(rest) != 1 {
			return fmt.Errorf("usage: /cancel-file <transfer-hex>")
		}
		id, err := parseTransferID(rest[0])
		if err != nil {
			return err
		}
		return a.Wire.Files.CancelFile(ctx, id)
	case "/call":
		if len(rest) != 1 {
			return fmt.Errorf("usage: /call <peer-hex>")
		}
		peer, err := parsePublicKey(rest[0])
		if err != nil {
			return err
		}
		id, err := a.Wire.Voice.StartCall(ctx, domain.Scope{Kind: domain.ScopeDM, Peer: peer})
		if err != nil {
			return err
		}
		fmt.Printf("calling, call %s\n", id)
		return nil
	case "/calls":
		for _, c := range a.Wire.Voice.Calls() {
			fmt.Printf("%s  %s\n", c.ID, c.State)
		}
		return nil
	case "/accept-call":
		return voiceCallOp(ctx, a, rest, a.Wire.Voice.AcceptCall)
	case "/reject-call":
		return voiceCallOp(ctx, a, rest, a.Wire.Voice.RejectCall)
	case "/hangup":
		return voiceCallOp(ctx, a, rest, a.Wire.Voice.Hangup)
	case "/mute", "/unmute":
		if len(rest) != 1 {
			return fmt.Errorf("usage: %s <call-hex>", cmdName)
		}
		id, err := parseCallID(rest[0])
		if err != nil {
			return err
		}
		return a.Wire.Voice.SetMuted(ctx, id, cmdName == "/mute")
	case "/share":
		if len(rest) != 1 {
			return fmt.Errorf("usage: /share <peer-hex>")
		}
		peer, err := parsePublicKey(rest[0])
		if err != nil {
			return err
		}
		return a.Wire.ScreenShare.RequestShare(ctx, peer)
	case "/shares":
		for _, st := range a.Wire.ScreenShare.Shares() {
			fmt.Printf("%s  %s\n", st.Peer, st.State)
		}
		return nil
	case "/accept-share":
		return screenShareOp(ctx, a, rest, a.Wire.ScreenShare.AcceptShare)
	case "/reject-share":
		return screenShareOp(ctx, a, rest, a.Wire.ScreenShare.RejectShare)
	case "/stop-share":
		return screenShareOp(ctx, a, rest, a.Wire.ScreenShare.StopShare)
	default:
		return fmt.Errorf("unknown command %q, try /help", cmdName)
	}
}

func voiceCallOp(ctx context.Context, a *app.App, rest []string, op func(context.Context, domain.CallID) error) error {
	if len(rest) != 1 {
		return fmt.Errorf("usage: <call-hex>")
	}
	id, err := parseCallID(rest[0])
	if err != nil {
		return err
	}
	return op(ctx, id)
}

func screenShareOp(ctx context.Context, a *app.App, rest []string, op func(context.Context, domain.PublicKey) error) error {
	if len(rest) != 1 {
		return fmt.Errorf("usage: <peer-hex>")
	}
	peer, err := parsePublicKey(rest[0])
	if err != nil {
		return err
	}
	return op(ctx, peer)
}

func printHelp() {
	fmt.Println(`commands:
  /peers                           list known peers
  /history                         replay locally logged chat lines
  /nick <name>                     set local nickname
  /msg <peer-hex> <text>           send a direct message
  /safety <peer-hex>               print the safety number for a peer
  /room <name>                     create a room
  /rooms                           list rooms
  /invite <room-hex> <peer-hex>    invite a peer to a room
  /leave <room-hex>                leave a room
  /roommsg <room-hex> <text>       send a message to a room
  /send <peer-hex> <path>          offer a file transfer
  /files                           list file transfers
  /accept-file <id> [dir]          accept a pending transfer
  /reject-file <id>                reject a pending transfer
  /cancel-file <id>                cancel an in-progress transfer
  /call <peer-hex>                 start a voice call
  /calls                           list calls
  /accept-call <id>                accept a ringing call
  /reject-call <id>                reject a ringing call
  /hangup <id>                     end a call
  /mute <id> / /unmute <id>        toggle local mute
  /share <peer-hex>                request to share your screen
  /shares                          list screen-share relationships
  /accept-share <peer-hex>         accept a pending screen-share request
  /reject-share <peer-hex>         reject a pending screen-share request
  /stop-share <peer-hex>           stop sharing or viewing with a peer
  /quit                            disconnect and exit`)
}

func parsePublicKey(s string) (domain.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(domain.PublicKey{}) {
		return domain.PublicKey{}, fmt.Errorf("invalid public key %q", s)
	}
	var pk domain.PublicKey
	copy(pk[:], raw)
	return pk, nil
}

func parseRoomID(s string) (domain.RoomID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(domain.RoomID{}) {
		return domain.RoomID{}, fmt.Errorf("invalid room id %q", s)
	}
	var id domain.RoomID
	copy(id[:], raw)
	return id, nil
}

func parseTransferID(s string) (domain.TransferID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(domain.TransferID{}) {
		return domain.TransferID{}, fmt.Errorf("invalid transfer id %q", s)
	}
	var id domain.TransferID
	copy(id[:], raw)
	return id, nil
}

func parseCallID(s string) (domain.CallID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(domain.CallID{}) {
		return domain.CallID{}, fmt.Errorf("invalid call id %q", s)
	}
	var id domain.CallID
	copy(id[:], raw)
	return id, nil
}
