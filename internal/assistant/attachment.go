package assistant

import (
	"context"
	"fmt"
	"io"

	"github.com/dvloznov/finance-assistant/internal/logger"
)

// Attachment is the optional binary input of a request: nil, Image or Audio.
type Attachment interface {
	attachment()
}

// Image is an uploaded picture, typically a receipt or a payment screenshot.
type Image struct {
	Data     []byte
	MIMEType string
}

// Audio is an uploaded voice note.
type Audio struct {
	Data     []byte
	MIMEType string
}

func (Image) attachment() {}
func (Audio) attachment() {}

// Describe returns the kind label, effective media type and bytes of a.
// A nil attachment is described as "text".
func Describe(a Attachment) (kind, mimeType string, data []byte) {
	switch v := a.(type) {
	case Image:
		return "image", orDefault(v.MIMEType, DefaultImageMIMEType), v.Data
	case Audio:
		return "audio", orDefault(v.MIMEType, DefaultAudioMIMEType), v.Data
	default:
		return "text", "", nil
	}
}

// Upload is a file received at the boundary, not yet read.
type Upload struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

func (u *Upload) present() bool {
	return u != nil && u.Filename != "" && u.Open != nil
}

func (u *Upload) read() ([]byte, error) {
	rc, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", u.Filename, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", u.Filename, err)
	}
	return data, nil
}

// SelectAttachment reads at most one upload into an Attachment.
// An image always wins: when both files are sent the audio is not read and
// is dropped with a warning. Uploads without a filename count as absent.
func SelectAttachment(ctx context.Context, image, audio *Upload) (Attachment, error) {
	log := logger.FromContext(ctx)

	if image.present() {
		if audio.present() {
			log.Warn().
				Str("image", image.Filename).
				Str("audio", audio.Filename).
				Msg("Both image and audio uploaded, ignoring audio")
		}

		log.Info().Str("filename", image.Filename).Msg("Processing image")
		data, err := image.read()
		if err != nil {
			return nil, NewError(KindAttachment, "Image processing failed", err)
		}
		return Image{Data: data, MIMEType: image.ContentType}, nil
	}

	if audio.present() {
		log.Info().Str("filename", audio.Filename).Msg("Processing audio")
		data, err := audio.read()
		if err != nil {
			return nil, NewError(KindAttachment, "Audio processing failed", err)
		}
		return Audio{Data: data, MIMEType: audio.ContentType}, nil
	}

	return nil, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
