package audio

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Rejection codes returned in Result.Code
const (
	CodeEmptyAudio        = "empty_audio"
	CodeAudioTooLarge     = "audio_too_large"
	CodeAudioTooLong      = "audio_too_long"
	CodeUnsupportedFormat = "unsupported_format"
)

// DefaultAllowedTypes is the media type allow-list for uploads
var DefaultAllowedTypes = []string{
	"audio/wav",
	"audio/x-wav",
	"audio/wave",
	"audio/mpeg",
	"audio/mp3",
	"audio/mp4",
	"audio/m4a",
	"audio/x-m4a",
	"audio/webm",
	"audio/ogg",
	"audio/flac",
	"audio/x-flac",
}

// Limits are the intake constraints, overridable through configuration
type Limits struct {
	MaxBytes     int64
	MaxDuration  time.Duration
	AllowedTypes []string
}

// DefaultLimits returns 25 MiB, 300 s and the default allow-list
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:     25 << 20,
		MaxDuration:  300 * time.Second,
		AllowedTypes: DefaultAllowedTypes,
	}
}

// Result is the outcome of validating one upload. An invalid result is a
// normal rejection, not a processing error.
type Result struct {
	Valid     bool
	Code      string
	Reason    string
	Status    int
	Size      int64
	Duration  time.Duration
	MediaType string
}

func reject(status int, code, reason string) Result {
	return Result{Valid: false, Status: status, Code: code, Reason: reason}
}

// Validator checks uploads against Limits before any paid call is made
type Validator struct {
	limits Limits
	prober Prober
}

// NewValidator creates a validator. Missing limits fall back to the defaults.
func NewValidator(limits Limits, prober Prober) *Validator {
	defaults := DefaultLimits()
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = defaults.MaxBytes
	}
	if limits.MaxDuration <= 0 {
		limits.MaxDuration = defaults.MaxDuration
	}
	if len(limits.AllowedTypes) == 0 {
		limits.AllowedTypes = defaults.AllowedTypes
	}

	return &Validator{limits: limits, prober: prober}
}

// Limits returns the effective limits
func (v *Validator) Limits() Limits {
	return v.limits
}

// CheckSize rejects sizes outside (0, MaxBytes]. It lets the caller stop
// reading an oversized upload before probing it.
func (v *Validator) CheckSize(size int64) (Result, bool) {
	if size <= 0 {
		return reject(http.StatusBadRequest, CodeEmptyAudio, "the audio upload is empty"), false
	}
	if size > v.limits.MaxBytes {
		return reject(http.StatusRequestEntityTooLarge, CodeAudioTooLarge,
			fmt.Sprintf("audio exceeds the maximum size of %d bytes", v.limits.MaxBytes)), false
	}
	return Result{}, true
}

// Validate checks the artifact at path against the size, format and duration limits
func (v *Validator) Validate(ctx context.Context, path, declaredType string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat audio artifact: %w", err)
	}

	size := info.Size()
	if res, ok := v.CheckSize(size); !ok {
		res.Size = size
		return res, nil
	}

	// A declared type must be on the allow-list; generic uploads rely on sniffing
	declared := normalizeMediaType(declaredType)
	if declared != "" && declared != "application/octet-stream" && !v.allowed(declared) {
		return v.unsupported(size, fmt.Sprintf("media type %s is not supported", declared)), nil
	}

	sniffed, err := mimetype.DetectFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to inspect audio artifact: %w", err)
	}

	mediaType, ok := v.match(sniffed)
	if !ok {
		return v.unsupported(size, "the uploaded file is not a supported audio format"), nil
	}

	// A probe failure means the file cannot be decoded, which is a rejection
	duration, err := v.prober.Probe(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return v.unsupported(size, "unsupported audio format"), nil
	}

	if duration > v.limits.MaxDuration {
		res := reject(http.StatusUnprocessableEntity, CodeAudioTooLong,
			fmt.Sprintf("audio is %.1fs long, the maximum is %.0fs", duration.Seconds(), v.limits.MaxDuration.Seconds()))
		res.Size = size
		res.Duration = duration
		return res, nil
	}

	return Result{
		Valid:     true,
		Size:      size,
		Duration:  duration,
		MediaType: mediaType,
	}, nil
}

func (v *Validator) unsupported(size int64, reason string) Result {
	res := reject(http.StatusUnsupportedMediaType, CodeUnsupportedFormat, reason)
	res.Size = size
	return res
}

func (v *Validator) allowed(mediaType string) bool {
	for _, allowed := range v.limits.AllowedTypes {
		if strings.EqualFold(allowed, mediaType) {
			return true
		}
	}
	return false
}

// match returns the allow-listed type the sniffed content satisfies, if any
func (v *Validator) match(sniffed *mimetype.MIME) (string, bool) {
	for m := sniffed; m != nil; m = m.Parent() {
		for _, allowed := range v.limits.AllowedTypes {
			if m.Is(allowed) {
				return allowed, true
			}
		}
	}
	return "", false
}

// normalizeMediaType strips parameters (e.g. "; codecs=opus") and lowercases
func normalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(mediaType)
	}
	return parsed
}

// ExtensionFor returns the file extension used for artifacts of a media type
func ExtensionFor(mediaType string) string {
	switch normalizeMediaType(mediaType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ".audio"
	}
}
