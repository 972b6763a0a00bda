// Command callsim plays a caller against a running server by posting the
// same speech callbacks Twilio would send, and prints each TwiML reply.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/room4-2/SalesCaller/messages"
)

func main() {
	base := flag.String("url", "http://localhost:5000", "server base URL")
	to := flag.String("to", "", "callee number reported in the To field")
	callSid := flag.String("call-sid", "", "call id to use (random when empty)")
	flag.Parse()

	if *callSid == "" {
		*callSid = "CAsim" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	path := messages.PathProcess

	log.Printf("Simulating call %s against %s", *callSid, *base)
	fmt.Println("Type what the caller says. Ctrl-D to hang up.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("[%s] > ", path)
		if !scanner.Scan() {
			break
		}

		form := url.Values{
			"CallSid":      {*callSid},
			"SpeechResult": {scanner.Text()},
			"Direction":    {"outbound-api"},
		}
		if *to != "" {
			form.Set("To", *to)
		}

		resp, err := client.PostForm(strings.TrimRight(*base, "/")+path, form)
		if err != nil {
			log.Fatalf("Request failed: %v", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Fatalf("Failed to read reply: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			log.Fatalf("Server answered %s: %s", resp.Status, body)
		}

		fmt.Println(string(body))
		path = nextPath(string(body), path)
	}
}

// nextPath follows the Gather action or Redirect in a reply, the way Twilio would
func nextPath(doc, current string) string {
	switch {
	case strings.Contains(doc, messages.PathProcessDate):
		return messages.PathProcessDate
	case strings.Contains(doc, "<Gather"), strings.Contains(doc, "<Redirect"):
		return messages.PathProcess
	}
	return current
}
