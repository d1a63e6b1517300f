// Command client is a minimal one-shot CLI for talking to a Nimbus
// broker, showing how an external caller uses nimbus.Client directly
// without going through the service/json convenience layer.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nimbusmq/nimbus/nimbus"
)

func main() {
	broker := flag.String("broker", "tcp://127.0.0.1:5555", "broker client-facing address")
	identity := flag.String("identity", "cli-client", "client identity, also used to locate a public key for reply verification")
	keyDir := flag.String("keydir", "", "directory holding <identity>.pem public keys for signature verification")
	method := flag.String("method", "GET", "request method: GET, LIST, POST, PATCH or DELETE")
	endpoint := flag.String("endpoint", "", "target endpoint name")
	body := flag.String("body", "", "request body, sent under the data field \"body\"")
	timeout := flag.Duration("timeout", 500*time.Millisecond, "reply poll timeout")
	flag.Parse()

	if *endpoint == "" {
		fmt.Fprintln(os.Stderr, "missing required -endpoint flag")
		os.Exit(2)
	}

	security := nimbus.NewSecurityManager(*identity, nil, *keyDir)

	client, err := nimbus.NewClient(*broker, *identity, security, *timeout)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "broker": *broker}).Fatal("failed to connect to broker")
	}
	defer client.Close()

	var data map[string][]byte
	if *body != "" {
		data = map[string][]byte{"body": []byte(*body)}
	}

	var resp nimbus.Response
	switch *method {
	case "GET":
		resp, err = client.Get(*endpoint, nil)
	case "LIST":
		resp, err = client.List(*endpoint, nil)
	case "POST":
		resp, err = client.Post(*endpoint, data)
	case "PATCH":
		resp, err = client.Patch(*endpoint, nil, data)
	case "DELETE":
		resp, err = client.Delete(*endpoint, nil)
	default:
		fmt.Fprintf(os.Stderr, "unsupported method %q\n", *method)
		os.Exit(2)
	}
	if err != nil {
		log.WithFields(log.Fields{"error": err, "endpoint": *endpoint}).Fatal("request failed")
	}

	fmt.Printf("status=%d response=%v\n", resp.StatusCode, resp.Response)
}
