package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"strconv"
	"strings"

	"github.com/jask/orphanreg/internal/geo"
)

// Registration is the data sent when creating an orphanage.
type Registration struct {
	Name           string
	Position       geo.LatLng
	About          string
	Instructions   string
	OpeningHours   string
	OpenOnWeekends bool
	Images         []Upload
}

// Upload is one image part. Path is read when the payload is encoded.
type Upload struct {
	Path        string
	Name        string
	ContentType string
}

// Fields returns the scalar multipart fields in wire order.
func (r Registration) Fields() [][2]string {
	return [][2]string{
		{"name", r.Name},
		{"latitude", geo.FormatCoord(r.Position.Lat)},
		{"longitude", geo.FormatCoord(r.Position.Lng)},
		{"about", r.About},
		{"instructions", r.Instructions},
		{"opening_hours", r.OpeningHours},
		{"open_on_weekends", strconv.FormatBool(r.OpenOnWeekends)},
	}
}

// EncodeMultipart writes r as multipart/form-data and returns the content
// type including the boundary. Image parts keep their order.
func EncodeMultipart(w io.Writer, r Registration) (string, error) {
	mw := multipart.NewWriter(w)
	for _, f := range r.Fields() {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	for _, up := range r.Images {
		if err := writeImage(mw, up); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeImage(mw *multipart.Writer, up Upload) error {
	f, err := os.Open(up.Path)
	if err != nil {
		return fmt.Errorf("open image %s: %w", up.Name, err)
	}
	defer f.Close()

	ct := up.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, quoteEscaper.Replace(up.Name)))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy image %s: %w", up.Name, err)
	}
	return nil
}
