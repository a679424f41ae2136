package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/basaltdb/paxos"
)

// usage: kvdemo <self-index> <port> <peer-addr...>
//
// self is an explicit index rather than discovered by dialing in turn,
// since Config needs Peers ordered identically on every node.
func main() {
	if len(os.Args) < 4 {
		log.Fatalf("usage: %s <self-index> <port> <peer-addr...>", os.Args[0])
	}
	self, err := strconv.Atoi(os.Args[1])
	if err != nil {
		log.Fatalf("bad self index %q: %v", os.Args[1], err)
	}
	port, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("bad port %q: %v", os.Args[2], err)
	}
	peers := os.Args[3:]

	cfg, err := paxos.NewConfig(peers, self)
	if err != nil {
		log.Fatalf("bad config: %v", err)
	}

	engine, err := paxos.New(cfg, paxos.OperationCodecFunc(applyOp), newStore(), port)
	if err != nil {
		log.Fatalf("starting engine: %v", err)
	}
	defer engine.Teardown()

	fmt.Printf("kvdemo node %d listening on :%d, peers=%v\n", self, port, peers)
	fmt.Println("commands: GET <key> | PUT <key> <value>")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		var o op
		switch strings.ToUpper(fields[0]) {
		case "GET":
			if len(fields) != 2 {
				fmt.Println("usage: GET <key>")
				continue
			}
			o = op{Type: opGet, Key: fields[1]}
		case "PUT":
			if len(fields) != 3 {
				fmt.Println("usage: PUT <key> <value>")
				continue
			}
			o = op{Type: opPut, Key: fields[1], Value: fields[2]}
		default:
			fmt.Println("unknown command:", fields[0])
			continue
		}

		raw, err := encodeOp(o)
		if err != nil {
			fmt.Println("encode error:", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		result, err := engine.Request(ctx, raw)
		cancel()
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(string(result))
	}
}
