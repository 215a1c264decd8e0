// prioq-client is an interactive client for prioq-server. Each input
// line is validated locally before it is sent; "exit" ends the session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/azargarov/prioq"
	"github.com/azargarov/prioq/internal/client"
)

const prompt = "Enter Priority (1 = High, 2 = Medium, 3 = Low) and Command (format: PRIORITY:COMMAND):"

func main() {
	addr := flag.String("addr", "127.0.0.1:36000", "Server address")
	attempts := flag.Int("retries", 5, "Connection attempts before giving up")
	timeout := flag.Duration("timeout", client.DefaultTimeout, "Per-request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	c, err := client.Dial(ctx, *addr, prioq.RetryPolicy{Attempts: *attempts})
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Connection to server failed:", err)
		os.Exit(1)
	}
	c.Timeout = *timeout
	fmt.Println("Connected to server")

	if err := repl(c, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func repl(c *client.Client, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintln(out, prompt)
		if !sc.Scan() {
			_, _ = c.Close()
			return sc.Err()
		}

		line, err := client.ParseInput(sc.Text())
		if err != nil {
			fmt.Fprintln(out, "Invalid input format. Please use the format: PRIORITY:COMMAND (e.g., 1:HELP).")
			continue
		}
		if line.Exit {
			fmt.Fprintln(out, "Closing connection...")
			_, err := c.Close()
			return err
		}

		resp, err := c.Send(line.Priority, line.Command)
		if err != nil {
			fmt.Fprintln(out, "Server disconnected or an error occurred. Exiting...")
			return err
		}
		fmt.Fprintf(out, "Server response: %s\n", resp)
	}
}
