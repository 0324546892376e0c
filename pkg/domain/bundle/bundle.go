// Package bundle reads the ORIGINAL download of an activity: a zip holding
// the file the device uploaded, usually a single FIT file.
package bundle

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
)

// maxFileSize bounds a single decompressed entry.
const maxFileSize = 64 << 20

type File struct {
	Name string
	Data []byte
}

type Bundle struct {
	Files []File
}

// Open reads every regular entry of a zip archive held in memory.
func Open(data []byte) (*Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}

	b := &Bundle{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxFileSize+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if len(content) > maxFileSize {
			return nil, fmt.Errorf("read %s: entry larger than %d bytes", f.Name, maxFileSize)
		}
		b.Files = append(b.Files, File{Name: f.Name, Data: content})
	}
	return b, nil
}

// Pack writes files into a zip archive.
func Pack(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FITFiles returns the entries with a .fit extension.
func (b *Bundle) FITFiles() []File {
	var out []File
	for _, f := range b.Files {
		if strings.EqualFold(path.Ext(f.Name), ".fit") {
			out = append(out, f)
		}
	}
	return out
}

// Session is the summary of one FIT session message.
type Session struct {
	StartTime      time.Time
	Elapsed        time.Duration
	DistanceMeters float64
	Sport          string
	SubSport       string
}

// FITSummary describes one decoded FIT file.
type FITSummary struct {
	File     string
	Sessions []Session
	Laps     int
	Records  int
}

// Summarize decodes every FIT file in the bundle.
func (b *Bundle) Summarize() ([]FITSummary, error) {
	var out []FITSummary
	for _, f := range b.FITFiles() {
		s, err := SummarizeFIT(f.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		s.File = f.Name
		out = append(out, *s)
	}
	return out, nil
}

func SummarizeFIT(data []byte) (*FITSummary, error) {
	fitData, err := decoder.New(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode FIT: %w", err)
	}

	summary := &FITSummary{}
	for i := range fitData.Messages {
		msg := &fitData.Messages[i]
		switch msg.Num {
		case typedef.MesgNumSession:
			s := mesgdef.NewSession(msg)
			summary.Sessions = append(summary.Sessions, Session{
				StartTime:      s.StartTime.UTC(),
				Elapsed:        time.Duration(s.TotalElapsedTime) * time.Millisecond,
				DistanceMeters: float64(s.TotalDistance) / 100,
				Sport:          s.Sport.String(),
				SubSport:       s.SubSport.String(),
			})
		case typedef.MesgNumLap:
			summary.Laps++
		case typedef.MesgNumRecord:
			summary.Records++
		}
	}
	return summary, nil
}
