package playback

import (
	"log/slog"

	"golang.org/x/text/encoding/unicode"
)

type initDataEntry struct {
	typ  string
	data []byte
}

func (e initDataEntry) key() string {
	return e.typ + "\x00" + string(e.data)
}

// ProtectionManager holds the content protection context of one session: the
// selected key system and the init data still waiting for a key session. It
// is driven from the controller's event loop and never blocks.
type ProtectionManager struct {
	host    ContentProtectionHost
	log     *slog.Logger
	kid     KeySystemID
	pending []initDataEntry
	// seen holds every distinct pair ever buffered, pending or ensured.
	seen map[string]bool
}

func newProtectionManager(host ContentProtectionHost, log *slog.Logger) *ProtectionManager {
	return &ProtectionManager{
		host:    host,
		log:     log,
		seen:    make(map[string]bool),
	}
}

// KeySystem returns the selected key system, or "" if none is selected yet.
func (pm *ProtectionManager) KeySystem() KeySystemID { return pm.kid }

// Pending returns the number of distinct init data entries waiting for a key
// system.
func (pm *ProtectionManager) Pending() int { return len(pm.pending) }

// NeedKey buffers the init data and, once a key system can be selected,
// ensures a key session exists for every distinct buffered pair. A legacy
// event with no init data type is attributed to videoCodec. The returned
// error is a key system selection failure.
func (pm *ProtectionManager) NeedKey(typ string, initData []byte, videoCodec string, cp *ProtectionData) *Error {
	if typ == "" {
		typ = videoCodec
	}
	e := initDataEntry{typ: typ, data: initData}
	if !pm.seen[e.key()] {
		pm.seen[e.key()] = true
		pm.pending = append(pm.pending, e)
	}
	pm.log.Debug("key required", slog.String("type", typ))
	return pm.Resolve(videoCodec, cp)
}

// Resolve selects a key system when the protection descriptor and video
// codec are both known, then flushes buffered init data into key sessions.
func (pm *ProtectionManager) Resolve(videoCodec string, cp *ProtectionData) *Error {
	if pm.kid == "" {
		if cp == nil || videoCodec == "" {
			return nil
		}
		kid, err := pm.host.SelectKeySystem(videoCodec, cp)
		if err != nil {
			return newError(KindKeySystemSelectionError, "keysystem", "select key system", err)
		}
		pm.kid = kid
		pm.log.Info("key system selected", slog.String("kid", string(kid)))
	}
	pm.flush()
	return nil
}

func (pm *ProtectionManager) flush() {
	todo := pm.pending
	pm.pending = nil
	for _, e := range todo {
		if err := pm.host.EnsureKeySession(pm.kid, e.typ, e.data); err != nil {
			pm.log.Warn("ensure key session failed",
				slog.String("type", e.typ),
				slog.String("error", err.Error()))
		}
	}
}

// DecodeMessage turns a key message payload of UTF-16LE code units into a
// string.
func DecodeMessage(b []byte) string {
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// keySessionError builds the diagnostic for a key session error event.
func keySessionError(ev KeyEvent) *Error {
	sid := ""
	if ev.Session != nil {
		sid = ev.Session.SessionID()
	}
	return newError(KindKeySessionError, "keyerror", FormatKeyError(sid, ev.Code, ev.SystemCode), nil)
}

// Teardown releases the key system and forgets all buffered init data.
func (pm *ProtectionManager) Teardown() {
	if pm.kid != "" || len(pm.pending) > 0 {
		pm.host.Teardown(pm.kid)
	}
	pm.kid = ""
	pm.pending = nil
	pm.seen = make(map[string]bool)
}

func keyMessageError(err error) *Error {
	return newError(KindKeyMessageError, "keymessage", "update from key message", err)
}
