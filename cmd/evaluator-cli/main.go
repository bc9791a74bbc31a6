// Command evaluator-cli is a line-based chat front-end for the evaluation
// service. Each submitted line becomes one send cycle; a trailing backslash
// continues the input on the next line.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"voicebot-evaluator/internal/client"
	"voicebot-evaluator/internal/domain"
)

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", "http://localhost:8080", "evaluation service base URL")
	target := flag.String("target", "", "conversation participant to evaluate")
	flag.Parse()

	var opts []client.Option
	if *target != "" {
		opts = append(opts, client.WithEvaluateTarget(*target))
	}
	c := client.New(*baseURL, opts...)

	fmt.Println("voicebot-evaluator. Paste a system prompt and press Enter.")
	fmt.Println("Commands: /copy  /clear  /quit   (end a line with \\ to continue it)")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var continuation []string
	for {
		if len(continuation) > 0 {
			fmt.Print("... ")
		} else {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if strings.HasSuffix(line, "\\") {
			continuation = append(continuation, strings.TrimSuffix(line, "\\"))
			continue
		}
		input := strings.Join(append(continuation, line), "\n")
		continuation = nil

		switch strings.TrimSpace(input) {
		case "/quit", "/exit":
			return
		case "/clear":
			c.Clear()
			fmt.Println("(conversation cleared)")
			continue
		case "/copy":
			raw, err := c.CopyLast()
			if err != nil {
				fmt.Println("(nothing to copy)")
				continue
			}
			fmt.Println(raw)
			continue
		}

		if err := c.Send(context.Background(), input); err != nil {
			if errors.Is(err, client.ErrEmptyInput) {
				continue
			}
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			continue
		}

		printLast(c)
		fmt.Printf("[%s]\n", c.Status())
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "read error: %v\n", err)
		os.Exit(1)
	}
}

// printLast writes the raw text of the newest assistant message; raw
// markdown is more useful in a terminal than rendered HTML.
func printLast(c *client.Client) {
	msgs := c.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == domain.RoleAssistant && m.Phase == domain.PhaseSettled {
			fmt.Printf("\n%s  (%s)\n\n", m.RawText, m.Timestamp)
			return
		}
	}
}
