package source

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep"

	"nvgtcore/internal/mixer"
	"nvgtcore/internal/soundservice"
)

// NewFileSource implements the "file path (+ optional pack)" loading
// shape: it resolves name through the sound service's protocol/filter
// registry (spec.md §4.4), so a plain filesystem path and a
// pack-backed entry are the same call with a different protocol slot
// and directive. protocolSlot/filterSlot of 0 mean "use the registry's
// current default."
func NewFileSource(reg *soundservice.Registry, parent *mixer.Mixer, name string, protocolSlot int, protocolDirective soundservice.Directive, filterSlot int, filterDirective soundservice.Directive) (*Source, error) {
	key, err := reg.PrepareTriplet(name, protocolSlot, protocolDirective, filterSlot, filterDirective)
	if err != nil {
		return nil, err
	}
	rc, err := reg.OpenTriplet(key)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, fmt.Errorf("source: %q: protocol or filter produced no stream", name)
	}
	decoded, format, err := decodeVorbis(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return newSource(parent, decoded, format, rc)
}

// NewPreloadedFileSource is NewFileSource plus the preload cache named
// in spec.md §4.6: if name is already cached under cache, the returned
// Source decodes from the cached WAV-wrapped PCM buffer instead of
// reopening the original protocol/filter chain; otherwise it opens
// live as NewFileSource would and additionally kicks off a background
// worker that independently re-opens and fully decodes the same name,
// populating the cache for the next caller.
func NewPreloadedFileSource(cache *PreloadCache, reg *soundservice.Registry, parent *mixer.Mixer, name string, protocolSlot int, protocolDirective soundservice.Directive, filterSlot int, filterDirective soundservice.Directive) (*Source, error) {
	if decoded, format, ok := cache.lookup(name); ok {
		src, err := newSource(parent, decoded, format, io.NopCloser(nil))
		if err != nil {
			cache.release(name)
			return nil, err
		}
		src.cacheKey = name
		src.preload = cache
		return src, nil
	}

	src, err := NewFileSource(reg, parent, name, protocolSlot, protocolDirective, filterSlot, filterDirective)
	if err != nil {
		return nil, err
	}

	cache.spawnDecode(name, func() (decodedStream, beep.Format, error) {
		key, err := reg.PrepareTriplet(name, protocolSlot, protocolDirective, filterSlot, filterDirective)
		if err != nil {
			return nil, beep.Format{}, err
		}
		rc, err := reg.OpenTriplet(key)
		if err != nil {
			return nil, beep.Format{}, err
		}
		if rc == nil {
			return nil, beep.Format{}, fmt.Errorf("source: %q: protocol or filter produced no stream", name)
		}
		return decodeVorbis(rc)
	})

	return src, nil
}

// NewURLSource implements the "HTTP/HTTPS/FTP URL" loading shape as a
// thin specialization of NewFileSource: httpProtocolSlot is the slot a
// caller registered an *soundservice.HTTPProtocol under (the registry
// has no built-in URL protocol, unlike file/memory). FTP URLs are not
// served: HTTPProtocol only handles http and https.
func NewURLSource(reg *soundservice.Registry, parent *mixer.Mixer, httpProtocolSlot int, url string) (*Source, error) {
	return NewFileSource(reg, parent, url, httpProtocolSlot, soundservice.HTTPDirective{URL: url}, 0, nil)
}

// NewMemorySource implements the "in-memory bytes (+ optional legacy
// char-XOR stage)" loading shape. When legacyEncrypt is true, data is
// first run through the best-effort legacy transform (see legacy.go)
// before being handed to the decoder.
func NewMemorySource(parent *mixer.Mixer, data []byte, legacyEncrypt bool) (*Source, error) {
	buf := data
	if legacyEncrypt {
		buf = append([]byte(nil), data...)
		legacyXORTransform(buf, 0, len(buf))
	}
	rc := io.NopCloser(bytes.NewReader(buf))
	decoded, format, err := decodeVorbis(rc)
	if err != nil {
		return nil, err
	}
	return newSource(parent, decoded, format, rc)
}

// NewCallbackSource implements the "user callbacks" loading shape.
// scriptContext is carried verbatim on the returned Source for the
// caller's own bookkeeping; the engine never interprets it.
func NewCallbackSource(parent *mixer.Mixer, cb UserCallbacks, scriptContext string) (*Source, error) {
	rc := newCallbackReadCloser(cb)
	decoded, format, err := decodeVorbis(rc)
	if err != nil {
		return nil, err
	}
	src, err := newSource(parent, decoded, format, rc)
	if err != nil {
		return nil, err
	}
	src.scriptContext = scriptContext
	return src, nil
}

// NewPushSoundSource implements the "raw push" loading shape
// (push_memory/push_string): it returns both the transport-level
// Source and the PushSource handle push_memory/push_string calls go
// through. sampleRate and channels are mandatory here since there is
// no header to sniff.
func NewPushSoundSource(parent *mixer.Mixer, sampleRate, channels int) (*Source, *PushSource, error) {
	ps := NewPushSource(sampleRate, channels)
	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: channels, Precision: 2}
	src, err := newSource(parent, ps, format, ps)
	if err != nil {
		return nil, nil, err
	}
	return src, ps, nil
}
