package source

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// parseFTPURL extracts host:port, credentials and path from an ftp:// URL.
// Credentials default to anonymous.
func parseFTPURL(rawURL string) (host, user, pass, filePath string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", "", eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return "", "", "", "", eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" || u.Path == "/" {
		return "", "", "", "", eris.New("ftp: empty path")
	}

	user, pass = "anonymous", "anonymous@"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	return host, user, pass, u.Path, nil
}

func downloadFTP(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	host, user, pass, filePath, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", filePath))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp: dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(user, pass); err != nil {
		return nil, eris.Wrap(err, "ftp: login")
	}

	resp, err := conn.Retr(filePath)
	if err != nil {
		return nil, eris.Wrap(err, "ftp: retrieve")
	}
	defer resp.Close() //nolint:errcheck

	b, err := io.ReadAll(resp)
	if err != nil {
		return nil, eris.Wrap(err, "ftp: read")
	}
	return b, nil
}
