package simhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"playback-orchestrator/internal/playback"

	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrNoKeySystem is returned by SelectKeySystem when the host has no key
	// system for the descriptor.
	ErrNoKeySystem = errors.New("no supported key system")

	// ErrLicenseRejected is returned by UpdateFromMessage on a host
	// configured to reject licences.
	ErrLicenseRejected = errors.New("license request rejected")
)

// keySession is a simulated key session.
type keySession struct {
	id string
}

func (k *keySession) SessionID() string { return k.id }

// Protection implements playback.ContentProtectionHost. Ensuring a key
// session raises a key message whose payload is UTF-16LE, and a successful
// update raises key added.
type Protection struct {
	log    *slog.Logger
	kid    playback.KeySystemID
	reject bool

	mu        sync.Mutex
	listeners []func(playback.KeyEvent)
	sessions  map[string]*keySession
	next      int
	licensed  map[string]bool
}

// NewProtection returns a host offering kid. An empty kid supports no key
// system. With reject set every licence update fails.
func NewProtection(log *slog.Logger, kid playback.KeySystemID, reject bool) *Protection {
	return &Protection{
		log:      log,
		kid:      kid,
		reject:   reject,
		sessions: make(map[string]*keySession),
		licensed: make(map[string]bool),
	}
}

// Init implements playback.ContentProtectionHost.Init.
func (p *Protection) Init(s playback.RenderSurface) error {
	if s == nil {
		return errors.New("simhost: protection needs a render surface")
	}
	return nil
}

// Subscribe implements playback.ContentProtectionHost.Subscribe.
func (p *Protection) Subscribe(fn func(playback.KeyEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *Protection) emit(ev playback.KeyEvent) {
	p.mu.Lock()
	ls := make([]func(playback.KeyEvent), len(p.listeners))
	copy(ls, p.listeners)
	p.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

// NeedKey raises a need-key event, as the surface does when it meets
// encrypted media.
func (p *Protection) NeedKey(initDataType string, initData []byte) {
	p.emit(playback.KeyEvent{Type: playback.KeyNeeded, InitDataType: initDataType, InitData: initData})
}

// SelectKeySystem implements playback.ContentProtectionHost.SelectKeySystem.
func (p *Protection) SelectKeySystem(codec string, cp *playback.ProtectionData) (playback.KeySystemID, error) {
	if p.kid == "" || cp == nil {
		return "", ErrNoKeySystem
	}
	p.log.Debug("key system selected",
		slog.String("kid", string(p.kid)),
		slog.String("codec", codec),
		slog.String("scheme", cp.SchemeID))
	return p.kid, nil
}

// EnsureKeySession implements playback.ContentProtectionHost.EnsureKeySession.
func (p *Protection) EnsureKeySession(kid playback.KeySystemID, initDataType string, initData []byte) error {
	if kid != p.kid {
		return fmt.Errorf("%w: %s", ErrNoKeySystem, kid)
	}
	p.mu.Lock()
	p.next++
	ks := &keySession{id: fmt.Sprintf("ks-%d", p.next)}
	p.sessions[ks.id] = ks
	p.mu.Unlock()
	p.log.Debug("key session created", slog.String("session", ks.id), slog.String("type", initDataType))

	challenge, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().
		Bytes([]byte(fmt.Sprintf(`{"kids":[%q],"type":"temporary"}`, string(initData))))
	if err != nil {
		return err
	}
	p.emit(playback.KeyEvent{
		Type:           playback.KeyMessage,
		Session:        ks,
		Message:        challenge,
		DestinationURL: "sim://license/" + string(kid),
	})
	return nil
}

// UpdateFromMessage implements
// playback.ContentProtectionHost.UpdateFromMessage.
func (p *Protection) UpdateFromMessage(ctx context.Context, kid playback.KeySystemID, session playback.KeySession, message, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("simhost: key message without session")
	}
	if p.reject {
		p.emit(playback.KeyEvent{
			Type:       playback.KeyError,
			Session:    session,
			Code:       playback.KeyErrService,
			SystemCode: 403,
		})
		return ErrLicenseRejected
	}
	if !strings.Contains(message, "kids") {
		return fmt.Errorf("simhost: malformed license request for %s", url)
	}
	p.mu.Lock()
	p.licensed[session.SessionID()] = true
	p.mu.Unlock()
	p.log.Debug("license installed", slog.String("session", session.SessionID()), slog.String("kid", string(kid)))
	p.emit(playback.KeyEvent{Type: playback.KeyAdded, Session: session})
	return nil
}

// Teardown implements playback.ContentProtectionHost.Teardown.
func (p *Protection) Teardown(kid playback.KeySystemID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = make(map[string]*keySession)
	p.licensed = make(map[string]bool)
	p.log.Debug("key system torn down", slog.String("kid", string(kid)))
}

// Sessions returns the number of open key sessions.
func (p *Protection) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Licensed returns the number of key sessions holding a licence.
func (p *Protection) Licensed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.licensed)
}
