package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"parlo/internal/config"
)

type commandContext struct {
	configFlag *string
	userFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	client *http.Client
}

func newCommandContext(configFlag, userFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// userID resolves the learner identity from --user or the PARLO_USER
// environment variable. Zero means anonymous.
func (c *commandContext) userID() (int64, error) {
	raw := ""
	if c.userFlag != nil {
		raw = strings.TrimSpace(*c.userFlag)
	}
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("PARLO_USER"))
	}
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

// requireUserID resolves the learner identity and fails when it is absent.
func (c *commandContext) requireUserID() (int64, error) {
	id, err := c.userID()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("a user id is required: pass --user or set PARLO_USER")
	}
	return id, nil
}

func (c *commandContext) baseURL() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return "", fmt.Errorf("api bind address is not configured")
	}
	return "http://" + bind, nil
}

// apiGet fetches a JSON payload from the daemon API.
func (c *commandContext) apiGet(path string, userID int64, target any) error {
	return c.apiDo(http.MethodGet, path, userID, nil, target)
}

// apiPost sends a JSON request to the daemon API.
func (c *commandContext) apiPost(path string, userID int64, body, target any) error {
	return c.apiDo(http.MethodPost, path, userID, body, target)
}

func (c *commandContext) apiDo(method, path string, userID int64, body, target any) error {
	base, err := c.baseURL()
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("is the parlo daemon running? %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("%s", failure.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
