package broadcast

import "strings"

// Optional holds a value that may be absent. The zero value is absent.
type Optional[T any] struct {
	value T
	set   bool
}

func Some[T any](v T) Optional[T] { return Optional[T]{value: v, set: true} }

func None[T any]() Optional[T] { return Optional[T]{} }

func (o Optional[T]) Get() (T, bool) { return o.value, o.set }

func (o Optional[T]) IsSet() bool { return o.set }

// Patch is a sparse update. Absent fields leave the remote value unchanged.
type Patch struct {
	AutoStart   Optional[bool]
	AutoStop    Optional[bool]
	Privacy     Optional[Privacy]
	ChatEnabled Optional[bool]
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return !p.AutoStart.IsSet() && !p.AutoStop.IsSet() && !p.Privacy.IsSet() && !p.ChatEnabled.IsSet()
}

// Apply returns r with the present fields overwritten.
func (p Patch) Apply(r Remote) Remote {
	if v, ok := p.AutoStart.Get(); ok {
		r.AutoStart = v
	}
	if v, ok := p.AutoStop.Get(); ok {
		r.AutoStop = v
	}
	if v, ok := p.Privacy.Get(); ok {
		r.Privacy = strings.ToLower(string(v))
	}
	if v, ok := p.ChatEnabled.Get(); ok {
		r.ChatEnabled = v
	}
	return r
}

// Fields lists the names of present fields, for logging.
func (p Patch) Fields() []string {
	out := make([]string, 0, 4)
	if p.AutoStart.IsSet() {
		out = append(out, "auto_start")
	}
	if p.AutoStop.IsSet() {
		out = append(out, "auto_stop")
	}
	if p.Privacy.IsSet() {
		out = append(out, "privacy")
	}
	if p.ChatEnabled.IsSet() {
		out = append(out, "chat_enabled")
	}
	return out
}
