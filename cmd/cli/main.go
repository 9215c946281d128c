// Command vsp is a CLI client for the video upload server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "vsp")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "vsp")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `vsp CLI
Usage:
  vsp [--addr HOST:PORT] [--timeout D] <cmd> [args]

Commands:
  version
  register  -u <username> -p <password>
  login     -u <username> -p <password>              (saves token)
  upload    <file> [--title T] [--mime M] [--chunk-size N] [--retries N]
  status    <upload-id>
  list
  get       <video-id> [--range 3-] [-o file]
  rm        <video-id>
`)
	os.Exit(2)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands; global flags stop at the first command word.
func main() {
	addr := pflag.String("addr", "localhost:8080", "server addr")
	timeout := pflag.Duration("timeout", time.Minute, "per-request deadline")
	pflag.Usage = usage
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
	}
	cmd, args := pflag.Arg(0), pflag.Args()[1:]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &client{addr: *addr, timeout: *timeout}
	withToken := func() {
		tok, err := loadToken()
		if err != nil {
			fail(err)
		}
		c.token = tok
	}

	switch cmd {
	case "version":
		fmt.Printf("vsp %s (%s)\n", version, buildDate)

	case "register", "login":
		fs := pflag.NewFlagSet(cmd, pflag.ExitOnError)
		user := fs.StringP("user", "u", "", "username")
		pass := fs.StringP("pass", "p", "", "password")
		_ = fs.Parse(args)
		if *user == "" || *pass == "" {
			usage()
		}
		if cmd == "register" {
			id, err := c.register(ctx, *user, *pass)
			if err != nil {
				fail(err)
			}
			fmt.Println("user_id:", id)
			return
		}
		res, err := c.login(ctx, *user, *pass)
		if err != nil {
			fail(err)
		}
		if err := saveToken(tokenFile{AccessToken: res.AccessToken, ExpiresAt: res.ExpiresAt, UserID: res.UserID}); err != nil {
			fail(err)
		}
		fmt.Println("logged in; token expires", humanize.Time(res.ExpiresAt))

	case "upload":
		fs := pflag.NewFlagSet("upload", pflag.ExitOnError)
		title := fs.String("title", "", "video title (default: file name)")
		mime := fs.String("mime", "", "content type (default video/mp4)")
		chunk := fs.String("chunk-size", "4MiB", "chunk size, e.g. 512KiB or 8MB")
		retries := fs.Int("retries", 3, "retries per chunk on transport errors")
		_ = fs.Parse(args)
		if fs.NArg() != 1 {
			usage()
		}
		size, err := humanize.ParseBytes(*chunk)
		if err != nil || size == 0 {
			fail(fmt.Errorf("bad --chunk-size %q", *chunk))
		}
		path := fs.Arg(0)
		if *title == "" {
			*title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		withToken()
		id, err := c.upload(ctx, path, uploadOpts{
			Title:     *title,
			MIME:      *mime,
			ChunkSize: int64(size),
			Retries:   *retries,
			Progress: func(index int, sent, total int64) {
				fmt.Fprintf(os.Stderr, "\rchunk %d: %s / %s", index, humanize.IBytes(uint64(sent)), humanize.IBytes(uint64(total)))
			},
		})
		fmt.Fprintln(os.Stderr)
		if err != nil {
			if id != "" {
				fmt.Fprintln(os.Stderr, "upload id:", id, "(resume-safe: rerun status to see missing chunks)")
			}
			fail(err)
		}
		fmt.Println("video_id:", id)

	case "status":
		if len(args) != 1 {
			usage()
		}
		withToken()
		s, err := c.status(ctx, args[0])
		if err != nil {
			fail(err)
		}
		printJSON(s)

	case "list":
		withToken()
		vids, err := c.list(ctx)
		if err != nil {
			fail(err)
		}
		for _, v := range vids {
			fmt.Printf("%s  %-10s  %-12s  %s\n", v.VideoID, humanize.IBytes(uint64(v.Size)), humanize.Time(v.CreatedAt), v.Title)
		}

	case "get":
		fs := pflag.NewFlagSet("get", pflag.ExitOnError)
		rng := fs.String("range", "", "byte range without the bytes= prefix, e.g. 100-199")
		out := fs.StringP("out", "o", "", "write to file instead of stdout")
		_ = fs.Parse(args)
		if fs.NArg() != 1 {
			usage()
		}
		withToken()
		resp, err := c.get(ctx, fs.Arg(0), *rng)
		if err != nil {
			fail(err)
		}
		if cr := resp.Headers["Content-Range"]; cr != "" {
			fmt.Fprintln(os.Stderr, "content-range:", cr)
		}
		if *out == "" {
			_, _ = os.Stdout.Write(resp.Body)
			return
		}
		if err := os.WriteFile(*out, resp.Body, 0o644); err != nil {
			fail(err)
		}

	case "rm":
		if len(args) != 1 {
			usage()
		}
		withToken()
		if err := c.remove(ctx, args[0]); err != nil {
			fail(err)
		}
		fmt.Println("deleted", args[0])

	default:
		usage()
	}
}
