package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/lox/airwatch/internal/httputil"
)

const ftpTimeout = 30 * time.Second

// OpenSource opens a CSV source given as a local path, an http(s) URL or an
// ftp URL. Anonymous FTP login is used unless the URL carries credentials.
func OpenSource(ctx context.Context, src string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return openHTTP(ctx, src)
	case strings.HasPrefix(src, "ftp://"):
		return openFTP(ctx, src)
	default:
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		return f, nil
	}
}

func openHTTP(ctx context.Context, src string) (io.ReadCloser, error) {
	req, err := httputil.NewRequest(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := httputil.NewClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch source: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

type ftpReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpReader) Close() error {
	err := r.resp.Close()
	if qerr := r.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}

func openFTP(ctx context.Context, src string) (io.ReadCloser, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse ftp url: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":21"
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp retrieve: %w", err)
	}
	return &ftpReader{resp: resp, conn: conn}, nil
}
