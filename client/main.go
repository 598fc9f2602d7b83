package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const usage = `Commands:
  /login <username> <password>    - Login to your account
  /register <username> <password> - Create new account
  /msg <username> <message>       - Send private message
  /users                          - List online users
  /faq <question>                 - Ask the FAQ bot
  put <filename>                  - Upload file
  get <filename>                  - Download file
  exit                            - Quit`

func main() {
	addr := "127.0.0.1:8080"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	client, err := Dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Println("Connected to server!")
	fmt.Println(usage)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		select {
		case <-client.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "put "):
			if err := client.Put(strings.TrimSpace(line[4:])); err != nil {
				fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
			}
		case strings.HasPrefix(line, "get "):
			if err := client.Get(strings.TrimSpace(line[4:])); err != nil {
				fmt.Fprintf(os.Stderr, "Download failed: %v\n", err)
			}
		case line == "exit":
			client.Send("exit")
			fmt.Println("Closing connection...")
			return
		default:
			if err := client.Send(line); err != nil {
				fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
				return
			}
		}
	}
}
