package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kingrea/kmap/internal/config"
)

type commandContext struct {
	projectFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(projectFlag *string) *commandContext {
	return &commandContext{projectFlag: projectFlag}
}

func (c *commandContext) projectDir() (string, error) {
	if c.projectFlag != nil {
		if dir := strings.TrimSpace(*c.projectFlag); dir != "" {
			return dir, nil
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

// ensureConfig initializes .kmap on first use and loads its config once.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		dir, err := c.projectDir()
		if err != nil {
			c.configErr = err
			return
		}
		if err := config.InitDir(dir); err != nil {
			c.configErr = fmt.Errorf("initialize %s directory: %w", config.KmapDir, err)
			return
		}
		c.config, c.configErr = config.Load(dir)
	})
	return c.config, c.configErr
}
