package preamble_test

import (
	"fmt"

	"github.com/crosswire/fetch/preamble"
)

func ExampleParse() {
	pre, err := preamble.Parse("HTTP/1.1 200 OK\nContent-Type: text/plain\nServer: demo\n\n")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(pre.Status)
	fmt.Println(pre.Headers["Content-Type"])
	fmt.Println(pre.Headers[preamble.StatusKey])
	// Output:
	// 200
	// text/plain
	// 200
}
