package p2p

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"

	"github.com/yourusername/headerproof/internal/storage"
	"github.com/yourusername/headerproof/internal/stream"
)

const (
	// Protocol IDs
	HeadersProtocol = "/headerproof/headers/1.0.0"
	TipProtocol     = "/headerproof/tip/1.0.0"
	PingProtocol    = "/headerproof/ping/1.0.0"
)

// MaxRangeCount caps the number of headers served per request
const MaxRangeCount = 50000

const requestTimeout = 30 * time.Second

var (
	ErrNoStore      = errors.New("relay has no header store")
	ErrRangeInvalid = errors.New("invalid header range")
	ErrRemote       = errors.New("peer refused request")
)

// MessageType represents the type of P2P message
type MessageType string

const (
	MsgTypeGetHeaders MessageType = "get_headers"
	MsgTypeHeaders    MessageType = "headers"
	MsgTypeGetTip     MessageType = "get_tip"
	MsgTypeTip        MessageType = "tip"
	MsgTypePing       MessageType = "ping"
	MsgTypePong       MessageType = "pong"
	MsgTypeError      MessageType = "error"
)

// Message is the JSON envelope exchanged before any header records
type Message struct {
	Type      MessageType `json:"type"`
	Data      []byte      `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	From      string      `json:"from"`
}

// RangeRequest asks for count headers starting at height From
type RangeRequest struct {
	From  uint32 `json:"from"`
	Count uint32 `json:"count"`
}

// TipInfo describes the highest stored header of a peer
type TipInfo struct {
	Height uint32 `json:"height"`
	Empty  bool   `json:"empty"`
}

// Relay serves stored headers to peers and fetches header ranges from them
type Relay struct {
	host   host.Host
	store  *storage.Storage
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	peers     map[peer.ID]bool
	peerMutex sync.RWMutex

	syncMutex sync.Mutex
	syncing   bool
}

// NewRelay creates a libp2p host listening on listenAddr. store may be nil for
// a relay that only fetches.
func NewRelay(ctx context.Context, store *storage.Storage, listenAddr string, logger zerolog.Logger, opts ...libp2p.Option) (*Relay, error) {
	addr, err := multiaddr.NewMultiaddr(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address: %w", err)
	}

	h, err := libp2p.New(append([]libp2p.Option{libp2p.ListenAddrs(addr)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	relayCtx, cancel := context.WithCancel(ctx)

	r := &Relay{
		host:   h,
		store:  store,
		logger: logger.With().Str("component", "p2p").Logger(),
		ctx:    relayCtx,
		cancel: cancel,
		peers:  make(map[peer.ID]bool),
	}

	h.SetStreamHandler(protocol.ID(HeadersProtocol), r.handleHeadersStream)
	h.SetStreamHandler(protocol.ID(TipProtocol), r.handleTipStream)
	h.SetStreamHandler(protocol.ID(PingProtocol), r.handlePingStream)

	return r, nil
}

// Start logs the addresses peers can dial
func (r *Relay) Start() error {
	r.logger.Info().Str("id", r.host.ID().String()).Strs("addrs", r.Addrs()).Msg("header relay started")
	return nil
}

// Stop shuts the host down
func (r *Relay) Stop() error {
	r.cancel()
	return r.host.Close()
}

// ID returns the relay's peer id
func (r *Relay) ID() peer.ID {
	return r.host.ID()
}

// Addrs returns full multiaddrs including the /p2p component
func (r *Relay) Addrs() []string {
	addrs := make([]string, 0, len(r.host.Addrs()))
	for _, addr := range r.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", addr, r.host.ID()))
	}
	return addrs
}

// ConnectToPeer connects to a peer using its multiaddr
func (r *Relay) ConnectToPeer(ctx context.Context, peerAddr string) (peer.ID, error) {
	addr, err := multiaddr.NewMultiaddr(peerAddr)
	if err != nil {
		return "", fmt.Errorf("invalid peer address: %w", err)
	}

	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return "", fmt.Errorf("failed to parse peer info: %w", err)
	}

	if err := r.host.Connect(ctx, *info); err != nil {
		return "", fmt.Errorf("failed to connect to peer: %w", err)
	}

	r.peerMutex.Lock()
	r.peers[info.ID] = true
	r.peerMutex.Unlock()

	r.logger.Debug().Str("peer", info.ID.String()).Msg("connected")

	return info.ID, nil
}

func (r *Relay) newMessage(t MessageType, data []byte) Message {
	return Message{Type: t, Data: data, Timestamp: time.Now(), From: r.host.ID().String()}
}

func writeMessage(w io.Writer, msg Message) error {
	return json.NewEncoder(w).Encode(msg)
}

// readMessage reads one newline-terminated JSON message. Bytes after the newline
// stay in br.
func readMessage(br *bufio.Reader) (Message, error) {
	var msg Message

	line, err := br.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return msg, err
	}

	if err := json.Unmarshal(line, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode message: %w", err)
	}

	return msg, nil
}

// request opens a stream to peerAddr, sends msg and reads the reply envelope
func (r *Relay) request(ctx context.Context, peerAddr string, proto string, msg Message) (network.Stream, *bufio.Reader, Message, error) {
	id, err := r.ConnectToPeer(ctx, peerAddr)
	if err != nil {
		return nil, nil, Message{}, err
	}

	s, err := r.host.NewStream(ctx, id, protocol.ID(proto))
	if err != nil {
		return nil, nil, Message{}, fmt.Errorf("failed to open stream: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}

	if err := writeMessage(s, msg); err != nil {
		_ = s.Reset()
		return nil, nil, Message{}, fmt.Errorf("failed to send message: %w", err)
	}

	br := bufio.NewReader(s)
	reply, err := readMessage(br)
	if err != nil {
		_ = s.Reset()
		return nil, nil, Message{}, fmt.Errorf("failed to read reply: %w", err)
	}

	if reply.Type == MsgTypeError {
		_ = s.Close()
		return nil, nil, reply, fmt.Errorf("%w: %s", ErrRemote, reply.Data)
	}

	return s, br, reply, nil
}

// FetchRange asks the peer at peerAddr for count headers starting at from. The
// returned reader streams records straight off the connection and must be closed.
func (r *Relay) FetchRange(ctx context.Context, peerAddr string, from, count uint32) (*RangeReader, error) {
	data, err := json.Marshal(RangeRequest{From: from, Count: count})
	if err != nil {
		return nil, err
	}

	s, br, reply, err := r.request(ctx, peerAddr, HeadersProtocol, r.newMessage(MsgTypeGetHeaders, data))
	if err != nil {
		return nil, err
	}

	if reply.Type != MsgTypeHeaders {
		_ = s.Reset()
		return nil, fmt.Errorf("unexpected reply %q", reply.Type)
	}

	return &RangeReader{s: s, reader: stream.NewReader(br), want: count}, nil
}

// PeerTip returns the highest header height the peer has stored
func (r *Relay) PeerTip(ctx context.Context, peerAddr string) (TipInfo, error) {
	var tip TipInfo

	s, _, reply, err := r.request(ctx, peerAddr, TipProtocol, r.newMessage(MsgTypeGetTip, nil))
	if err != nil {
		return tip, err
	}
	defer s.Close()

	if reply.Type != MsgTypeTip {
		return tip, fmt.Errorf("unexpected reply %q", reply.Type)
	}

	if err := json.Unmarshal(reply.Data, &tip); err != nil {
		return tip, fmt.Errorf("failed to decode tip: %w", err)
	}

	return tip, nil
}

// Ping measures the round trip to a peer
func (r *Relay) Ping(ctx context.Context, peerAddr string) (time.Duration, error) {
	start := time.Now()

	s, _, reply, err := r.request(ctx, peerAddr, PingProtocol, r.newMessage(MsgTypePing, nil))
	if err != nil {
		return 0, err
	}
	defer s.Close()

	if reply.Type != MsgTypePong {
		return 0, fmt.Errorf("unexpected reply %q", reply.Type)
	}

	return time.Since(start), nil
}

// SyncFromPeer copies every header the peer has above our tip into the local
// store and returns how many were added. Headers are stored unvalidated.
func (r *Relay) SyncFromPeer(ctx context.Context, peerAddr string) (uint32, error) {
	if r.store == nil {
		return 0, ErrNoStore
	}

	r.syncMutex.Lock()
	if r.syncing {
		r.syncMutex.Unlock()
		return 0, errors.New("sync already running")
	}
	r.syncing = true
	r.syncMutex.Unlock()

	defer func() {
		r.syncMutex.Lock()
		r.syncing = false
		r.syncMutex.Unlock()
	}()

	peerTip, err := r.PeerTip(ctx, peerAddr)
	if err != nil {
		return 0, err
	}
	if peerTip.Empty {
		return 0, nil
	}

	ourTip, ok, err := r.store.Tip()
	if err != nil {
		return 0, err
	}

	from := uint32(0)
	if ok {
		if ourTip >= peerTip.Height {
			return 0, nil
		}
		from = ourTip + 1
	}

	var synced uint32
	end := uint64(peerTip.Height) + 1
	for next := uint64(from); next < end; {
		count := chunkSize(next, end)

		n, err := r.syncRange(ctx, peerAddr, uint32(next), count)
		synced += n
		if err != nil {
			return synced, err
		}
		next += uint64(count)
	}

	r.logger.Info().Uint32("synced", synced).Uint32("tip", peerTip.Height).Msg("synced headers from peer")

	return synced, nil
}

// chunkSize is the size of the next range request covering [next, end)
func chunkSize(next, end uint64) uint32 {
	return uint32(min(end-next, MaxRangeCount))
}

func (r *Relay) syncRange(ctx context.Context, peerAddr string, from, count uint32) (uint32, error) {
	rr, err := r.FetchRange(ctx, peerAddr, from, count)
	if err != nil {
		return 0, err
	}
	defer rr.Close()

	if _, err := rr.ReadCount(ctx); err != nil {
		return 0, err
	}

	for i := uint32(0); i < count; i++ {
		raw, err := rr.ReadHeader(ctx)
		if err != nil {
			return i, err
		}
		if err := r.store.PutHeader(from+i, raw); err != nil {
			return i, err
		}
	}

	return count, nil
}

func (r *Relay) reply(s network.Stream, logger zerolog.Logger, msg Message) bool {
	if err := writeMessage(s, msg); err != nil {
		logger.Warn().Err(err).Msg("failed to send reply")
		return false
	}
	return true
}

func (r *Relay) replyError(s network.Stream, logger zerolog.Logger, err error) {
	logger.Debug().Err(err).Msg("request refused")
	r.reply(s, logger, r.newMessage(MsgTypeError, []byte(err.Error())))
}

func (r *Relay) readRequest(s network.Stream, logger zerolog.Logger, want MessageType) (Message, bool) {
	_ = s.SetReadDeadline(time.Now().Add(requestTimeout))

	msg, err := readMessage(bufio.NewReader(s))
	if err != nil {
		logger.Debug().Err(err).Msg("failed to read request")
		return msg, false
	}

	if msg.Type != want {
		r.replyError(s, logger, fmt.Errorf("unexpected message %q", msg.Type))
		return msg, false
	}

	return msg, true
}

func (r *Relay) checkRange(req RangeRequest) error {
	if r.store == nil {
		return ErrNoStore
	}
	if req.Count == 0 || req.Count > MaxRangeCount {
		return fmt.Errorf("%w: count %d", ErrRangeInvalid, req.Count)
	}

	last := uint64(req.From) + uint64(req.Count) - 1
	if last > uint64(^uint32(0)) {
		return fmt.Errorf("%w: range overflows", ErrRangeInvalid)
	}

	if !r.store.HasHeader(req.From) || !r.store.HasHeader(uint32(last)) {
		return fmt.Errorf("%w: headers %d..%d not stored", ErrRangeInvalid, req.From, last)
	}

	return nil
}

// handleHeadersStream replies with a headers envelope followed by the record stream
func (r *Relay) handleHeadersStream(s network.Stream) {
	defer s.Close()
	logger := r.logger.With().Str("peer", s.Conn().RemotePeer().String()).Logger()

	msg, ok := r.readRequest(s, logger, MsgTypeGetHeaders)
	if !ok {
		return
	}

	var req RangeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		r.replyError(s, logger, fmt.Errorf("%w: %v", ErrRangeInvalid, err))
		return
	}

	if err := r.checkRange(req); err != nil {
		r.replyError(s, logger, err)
		return
	}

	_ = s.SetReadDeadline(time.Time{})
	if !r.reply(s, logger, r.newMessage(MsgTypeHeaders, nil)) {
		return
	}

	src := r.store.Range(req.From, req.Count)
	defer src.Close()

	w := stream.NewWriter(s)
	if err := w.WriteCount(req.Count); err != nil {
		_ = s.Reset()
		return
	}

	for i := uint32(0); i < req.Count; i++ {
		raw, err := src.ReadHeader(r.ctx)
		if err == nil {
			err = w.WriteHeader(raw)
		}
		if err != nil {
			logger.Warn().Err(err).Uint32("height", req.From+i).Msg("header stream aborted")
			_ = s.Reset()
			return
		}
	}

	if err := w.Flush(); err != nil {
		_ = s.Reset()
		return
	}

	logger.Debug().Uint32("from", req.From).Uint32("count", req.Count).Msg("served headers")
}

func (r *Relay) handleTipStream(s network.Stream) {
	defer s.Close()
	logger := r.logger.With().Str("peer", s.Conn().RemotePeer().String()).Logger()

	if _, ok := r.readRequest(s, logger, MsgTypeGetTip); !ok {
		return
	}

	if r.store == nil {
		r.replyError(s, logger, ErrNoStore)
		return
	}

	height, ok, err := r.store.Tip()
	if err != nil {
		r.replyError(s, logger, err)
		return
	}

	data, _ := json.Marshal(TipInfo{Height: height, Empty: !ok})
	r.reply(s, logger, r.newMessage(MsgTypeTip, data))
}

// handlePingStream handles ping/pong messages for peer liveness
func (r *Relay) handlePingStream(s network.Stream) {
	defer s.Close()
	logger := r.logger.With().Str("peer", s.Conn().RemotePeer().String()).Logger()

	if _, ok := r.readRequest(s, logger, MsgTypePing); !ok {
		return
	}

	r.reply(s, logger, r.newMessage(MsgTypePong, nil))
}

// GetPeerCount returns the number of connected peers
func (r *Relay) GetPeerCount() int {
	r.peerMutex.RLock()
	defer r.peerMutex.RUnlock()
	return len(r.peers)
}

// GetPeers returns a list of connected peer IDs
func (r *Relay) GetPeers() []string {
	r.peerMutex.RLock()
	defer r.peerMutex.RUnlock()

	peers := make([]string, 0, len(r.peers))
	for p := range r.peers {
		peers = append(peers, p.String())
	}
	return peers
}
