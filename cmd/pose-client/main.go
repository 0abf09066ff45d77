// Command pose-client subscribes to a markertrack session and prints each
// pose it receives.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/markertrack/internal/httputil"
	"github.com/banshee-data/markertrack/internal/publish"
	"github.com/banshee-data/markertrack/internal/tracking"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	addr      = flag.String("addr", "127.0.0.1:5005", "Address of the markertrack sink")
	transport = flag.String("transport", "tcp", "Sink transport: tcp or grpc")
	statusURL = flag.String("status", "", "Print /api/status from this markertrack debug server and exit")
	count     = flag.Int("n", 0, "Stop after this many results (0 = run until interrupted)")
)

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *statusURL != "" {
		client := httputil.NewStandardClient(&http.Client{Timeout: 5 * time.Second})
		if err := printStatus(client, *statusURL, os.Stdout); err != nil {
			log.Fatalf("status: %v", err)
		}
		return
	}

	var (
		next func() ([]byte, error)
		err  error
	)
	switch *transport {
	case "tcp":
		next, err = dialTCP(ctx, *addr)
	case "grpc":
		next, err = dialStream(ctx, *addr)
	default:
		err = fmt.Errorf("unknown transport %q", *transport)
	}
	if err != nil {
		log.Fatal(err)
	}

	for n := 0; *count == 0 || n < *count; n++ {
		payload, err := next()
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				return
			}
			log.Fatalf("receive: %v", err)
		}
		res, err := tracking.DecodeFrameResult(payload)
		if err != nil {
			log.Printf("skipping malformed result: %v", err)
			continue
		}
		fmt.Println(formatResult(res))
	}
}

func dialTCP(ctx context.Context, addr string) (func() ([]byte, error), error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	sc := bufio.NewScanner(conn)
	return func() ([]byte, error) {
		if sc.Scan() {
			return sc.Bytes(), nil
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}, nil
}

func dialStream(ctx context.Context, addr string) (func() ([]byte, error), error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	sub, err := publish.Subscribe(ctx, conn)
	if err != nil {
		return nil, err
	}
	return sub.Recv, nil
}

func formatResult(r tracking.FrameResult) string {
	switch {
	case r.PoseFields == nil:
		return fmt.Sprintf("%.3f  no pose", r.Timestamp)
	case r.Predicted:
		return fmt.Sprintf("%.3f  predicted  t=(%.3f, %.3f, %.3f)", r.Timestamp, r.TranslationX, r.TranslationY, r.TranslationZ)
	default:
		return fmt.Sprintf("%.3f  t=(%.3f, %.3f, %.3f)  forward=(%.3f, %.3f, %.3f)", r.Timestamp,
			r.TranslationX, r.TranslationY, r.TranslationZ,
			r.RotationForwardX, r.RotationForwardY, r.RotationForwardZ)
	}
}

func printStatus(client httputil.HTTPClient, url string, out io.Writer) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", url, resp.Status)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}
