// voicechat-ctl sends a control command to a running voicechat daemon
// over its unix socket and prints the reply.
package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/ipc"
)

func main() {
	cli.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [stop|status]\n", os.Args[0])
		cli.PrintDefaults()
	}
	cli.Parse()

	if cli.NArg() != 1 {
		cli.Usage()
		os.Exit(2)
	}
	cmd := cli.Arg(0)

	reply, err := ipc.SendCommand(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicechat-ctl: %v\n", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Fprintln(os.Stderr, reply.Message)
		os.Exit(1)
	}
	fmt.Println(reply.Message)
}
