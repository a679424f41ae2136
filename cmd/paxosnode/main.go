// Command paxosnode launches a bare consensus node from a JSON config
// file, useful for scripted multi-node deployments where each node's
// file is generated rather than typed. It embeds a no-op codec; it
// exists to exercise the engine's networking and election machinery
// standalone, not to serve real data (see cmd/kvdemo for that).
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/basaltdb/paxos"
)

// nodeConfig mirrors paxos.Config but stays JSON-friendly and
// independent of the core package's internal representation.
type nodeConfig struct {
	Self  int      `json:"self"`
	Port  int      `json:"port"`
	Peers []string `json:"peers"`
}

func echoCodec(data any, op []byte) ([]byte, any, error) {
	return op, data, nil
}

func main() {
	path := flag.String("config", "", "path to a JSON node config file")
	flag.Parse()
	if *path == "" {
		log.Fatal("missing -config")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("opening config: %v", err)
	}
	defer f.Close()

	var nc nodeConfig
	if err := json.NewDecoder(f).Decode(&nc); err != nil {
		log.Fatalf("parsing config: %v", err)
	}

	cfg, err := paxos.NewConfig(nc.Peers, nc.Self)
	if err != nil {
		log.Fatalf("bad config: %v", err)
	}

	engine, err := paxos.New(cfg, paxos.OperationCodecFunc(echoCodec), nil, nc.Port)
	if err != nil {
		log.Fatalf("starting engine: %v", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Printf("paxosnode %d shutting down", nc.Self)
	if err := engine.Teardown(); err != nil {
		log.Printf("teardown: %v", err)
	}
}
