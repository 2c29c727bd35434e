// pkg/logger/reader.go

package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ReadLogFile returns the contents of a given log file.
func ReadLogFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read log file %s: %w", path, err)
	}
	return string(data), nil
}

// TryReadLogFile safely reads a log file after validating that it exists and is not a directory.
func TryReadLogFile(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		zap.L().Warn("Invalid log file path", zap.String("path", path))
		return "", fmt.Errorf("invalid log file path: %s", path)
	}
	return ReadLogFile(path)
}

// TailLogFile returns at most n trailing lines of path.
func TailLogFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	defer f.Close()

	var ring []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		ring = append(ring, scanner.Text())
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return ring, fmt.Errorf("scan log file %s: %w", path, err)
	}
	return ring, nil
}

// ColorizeLogLine takes a raw JSON log line and applies ANSI color based on its level.
func ColorizeLogLine(jsonLine string) string {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(jsonLine), &entry); err != nil {
		return jsonLine // not JSON
	}

	rawLevel, ok := entry[DefaultFileEncoderConfig().LevelKey].(string)
	if !ok {
		return jsonLine
	}

	switch rawLevel {
	case "DEBUG":
		return "\033[90m" + jsonLine + "\033[0m"
	case "INFO":
		return "\033[32m" + jsonLine + "\033[0m"
	case "WARN", "WARNING":
		return "\033[33m" + jsonLine + "\033[0m"
	case "ERROR":
		return "\033[31m" + jsonLine + "\033[0m"
	case "FATAL", "PANIC", "DPANIC":
		return "\033[1;31m" + jsonLine + "\033[0m"
	default:
		return jsonLine
	}
}
