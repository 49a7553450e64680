package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/moodtales/storyteller/internal/session"
	"github.com/moodtales/storyteller/internal/source"
)

// openSession loads a file or URL argument into a new session. typeFlag,
// when set, must agree with what the argument decodes to.
func openSession(arg, typeFlag string, maxBytes int64) (*session.Session, error) {
	var want source.Kind
	if typeFlag != "" {
		k, err := source.ParseKind(typeFlag)
		if err != nil {
			return nil, err
		}
		want = k
	}

	if isURL(arg) {
		if _, err := os.Stat(arg); errors.Is(err, fs.ErrNotExist) {
			kind := source.KindURL
			if want != "" {
				kind = want
			}
			sess := session.New("cli", kind)
			if err := sess.SetURL(arg); err != nil {
				return nil, err
			}
			return sess, nil
		}
	}

	info, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxBytes)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	payload, err := source.Decode(data, filepath.Base(arg), "")
	if err != nil {
		return nil, err
	}

	kind := payload.Kind()
	if want != "" {
		kind = want
	}
	sess := session.New("cli", kind)
	if err := sess.Ingest(payload, source.MetaFor(payload, filepath.Base(arg), len(data))); err != nil {
		return nil, err
	}
	return sess, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
