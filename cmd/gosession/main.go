// Command gosession runs the token lifecycle HTTP service and offers token
// and password utilities.
//
//	gosession serve --secret $(openssl rand -base64 32)
//	gosession token issue john --roles USER --secret ...
//	gosession token verify <token> --secret ...
//	gosession hash-password
//
// Every flag can also be set through a GOSESSION_ environment variable:
// --redis-addr becomes GOSESSION_REDIS_ADDR.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
