/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package exitcode

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"testing"

	"github.com/fulmenhq/cloudref/pkg/upload"
)

func TestExitCodeConstants(t *testing.T) {
	if Success != 0 {
		t.Errorf("Success = %v, expected 0", Success)
	}
	if GeneralError != 1 {
		t.Errorf("GeneralError = %v, expected 1", GeneralError)
	}
	if ConfigError != 2 {
		t.Errorf("ConfigError = %v, expected 2", ConfigError)
	}
	if UploadAborted != 10 {
		t.Errorf("UploadAborted = %v, expected 10", UploadAborted)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{ConfigError, "Configuration error"},
		{FileSystemError, "File system error"},
		{NetworkError, "Network error"},
		{UploadAborted, "Upload aborted"},
		{999, "Unknown error"},
	}

	for _, test := range tests {
		result := String(test.code)
		if result != test.expected {
			t.Errorf("String(%d) = %v, expected %v", test.code, result, test.expected)
		}
	}
}

func TestExitCodeUniqueness(t *testing.T) {
	codes := []int{Success, GeneralError, ConfigError, FileSystemError, NetworkError, UploadAborted}

	seen := make(map[int]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Exit code %d is not unique", code)
		}
		seen[code] = true
	}
}

func TestFromError(t *testing.T) {
	abort := &upload.AbortError{Identity: "/abs/a.png", Attempts: 4, Err: errors.New("timeout")}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"plain", errors.New("boom"), GeneralError},
		{"abort", abort, UploadAborted},
		{"wrapped abort", fmt.Errorf("phase 1: %w", abort), UploadAborted},
		{"config", &ConfigErr{Err: errors.New("bad roots")}, ConfigError},
		{"write failure", fmt.Errorf("write out.css: %w", &fs.PathError{Op: "open", Path: "out.css", Err: fs.ErrPermission}), FileSystemError},
		{"network", &url.Error{Op: "Post", URL: "https://api.example", Err: errors.New("connection refused")}, NetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromError(tt.err); got != tt.want {
				t.Errorf("FromError() = %d, expected %d", got, tt.want)
			}
		})
	}
}
