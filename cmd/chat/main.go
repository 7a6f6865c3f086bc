package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8000", "Disha server URL")
	user := flag.String("user", "default_user", "Username to chat as")
	flag.Parse()

	fmt.Println("Disha CLI Chat")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /history, /memories, /protocols")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		switch input {
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		case "/history":
			fetchHistory(*server, *user)
			continue
		case "/memories":
			fetchMemories(*server, *user)
			continue
		case "/protocols":
			fetchProtocols(*server)
			continue
		}

		sendMessage(*server, *user, input)
	}
}

func endpoint(server, path, user string) string {
	return server + path + "?username=" + url.QueryEscape(user)
}

func getJSON(target string, v interface{}) bool {
	resp, err := http.Get(target)
	if err != nil {
		printError("Request failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		printError("Failed to parse response: %v", err)
		return false
	}
	return true
}

func fetchHistory(server, user string) {
	var page struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Total int `json:"total"`
	}
	if !getJSON(endpoint(server, "/api/messages", user)+"&limit=10", &page) {
		return
	}
	fmt.Printf("Last %d of %d messages:\n", len(page.Messages), page.Total)
	for i := len(page.Messages) - 1; i >= 0; i-- {
		m := page.Messages[i]
		fmt.Printf("  [%s] %.120s\n", m.Role, m.Content)
	}
}

func fetchMemories(server, user string) {
	var facts []struct {
		Category   string `json:"category"`
		Key        string `json:"key"`
		Value      string `json:"value"`
		Importance int    `json:"importance"`
	}
	if !getJSON(endpoint(server, "/api/memories", user), &facts) {
		return
	}
	if len(facts) == 0 {
		fmt.Println("No memories stored yet.")
		return
	}
	fmt.Println("Memories:")
	for _, f := range facts {
		fmt.Printf("  %s.%s = %s (importance %d)\n", f.Category, f.Key, f.Value, f.Importance)
	}
}

func fetchProtocols(server string) {
	var protocols []struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		Priority int    `json:"priority"`
	}
	if !getJSON(server+"/api/protocols", &protocols) {
		return
	}
	if len(protocols) == 0 {
		fmt.Println("No protocols seeded. Run disha-init or POST /api/protocols/seed.")
		return
	}
	fmt.Println("Active protocols:")
	for _, p := range protocols {
		fmt.Printf("  %-20s %-12s priority %d\n", p.Name, p.Category, p.Priority)
	}
}

func sendMessage(server, user, content string) {
	body, _ := json.Marshal(map[string]string{"message": content})

	client := &http.Client{Timeout: 65 * time.Second}
	resp, err := client.Post(
		endpoint(server, "/api/chat", user),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var result struct {
		AssistantMessage struct {
			Content string `json:"content"`
		} `json:"assistant_message"`
		ContextUsed struct {
			Protocols     []string `json:"protocols"`
			MemoriesCount int      `json:"memories_count"`
		} `json:"context_used"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}

	if len(result.ContextUsed.Protocols) > 0 {
		fmt.Printf("\033[36m[%s]\033[0m ", strings.Join(result.ContextUsed.Protocols, ", "))
	}
	fmt.Println(result.AssistantMessage.Content)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
