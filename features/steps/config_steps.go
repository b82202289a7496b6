//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"drive-media-compressor/cmd"
	"drive-media-compressor/infrastructure/config"

	"github.com/cucumber/godog"
)

type configContext struct {
	tempDir    string
	configPath string
	config     *config.Config
	output     *bytes.Buffer
	err        error
}

var SharedConfigContext = &configContext{}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedConfigContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "config-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config.yaml")
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		testCtx.config = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^a config file exists with recipient "([^"]*)" named "([^"]*)" at "([^"]*)"$`, testCtx.aConfigFileExistsWithRecipient)
	ctx.Step(`^a config file with only defaults$`, testCtx.aConfigFileWithOnlyDefaults)
	ctx.Step(`^I run config add recipient with key "([^"]*)" name "([^"]*)" and email "([^"]*)"$`, testCtx.iRunConfigAddRecipient)
	ctx.Step(`^I run config add summary recipient with key "([^"]*)" name "([^"]*)" and email "([^"]*)"$`, testCtx.iRunConfigAddSummaryRecipient)
	ctx.Step(`^I run config list recipients$`, testCtx.iRunConfigListRecipients)
	ctx.Step(`^I run config remove recipient "([^"]*)"$`, testCtx.iRunConfigRemoveRecipient)
	ctx.Step(`^I load the configuration$`, testCtx.iLoadTheConfiguration)
	ctx.Step(`^the saved config should contain recipient "([^"]*)" with email "([^"]*)"$`, testCtx.theSavedConfigShouldContainRecipient)
	ctx.Step(`^the saved config should not contain recipient "([^"]*)"$`, testCtx.theSavedConfigShouldNotContainRecipient)
	ctx.Step(`^the saved config should send summaries to "([^"]*)"$`, testCtx.theSavedConfigShouldSendSummariesTo)
	ctx.Step(`^the small image threshold should be (\d+) bytes$`, testCtx.theSmallImageThresholdShouldBe)
	ctx.Step(`^the image engine should be "([^"]*)"$`, testCtx.theImageEngineShouldBe)
	ctx.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	ctx.Step(`^the command should fail with "([^"]*)"$`, testCtx.theCommandShouldFailWith)
	ctx.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
}

func (c *configContext) aConfigFileExistsWithRecipient(key, name, email string) error {
	c.config = config.Defaults()
	c.config.Notification.Recipients = map[string]config.RecipientConfig{
		key: {Name: name, Address: email},
	}
	c.config.Notification.SendTo = []string{key}
	return config.Save(c.config, c.configPath)
}

func (c *configContext) aConfigFileWithOnlyDefaults() error {
	c.config = config.Defaults()
	return os.WriteFile(c.configPath, []byte("google:\n  default_folder_id: \"abc\"\n"), 0644)
}

func (c *configContext) iRunConfigAddRecipient(key, name, email string) error {
	c.err = cmd.RunConfigAddWithDependencies(c.config, c.configPath, "recipient", key, name, email, false, c.output)
	return nil
}

func (c *configContext) iRunConfigAddSummaryRecipient(key, name, email string) error {
	c.err = cmd.RunConfigAddWithDependencies(c.config, c.configPath, "recipient", key, name, email, true, c.output)
	return nil
}

func (c *configContext) iRunConfigListRecipients() error {
	c.err = cmd.RunConfigListWithDependencies(c.config, c.configPath, "recipients", c.output)
	return nil
}

func (c *configContext) iRunConfigRemoveRecipient(key string) error {
	c.err = cmd.RunConfigRemoveWithDependencies(c.config, c.configPath, "recipient", key, c.output)
	return nil
}

func (c *configContext) iLoadTheConfiguration() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.config = cfg
	return nil
}

func (c *configContext) saved() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to reload config: %w", err)
	}
	return cfg, nil
}

func (c *configContext) theSavedConfigShouldContainRecipient(key, email string) error {
	cfg, err := c.saved()
	if err != nil {
		return err
	}
	r, ok := cfg.Notification.Recipients[key]
	if !ok {
		return fmt.Errorf("recipient %q not found", key)
	}
	if r.Address != email {
		return fmt.Errorf("expected email %q, got %q", email, r.Address)
	}
	return nil
}

func (c *configContext) theSavedConfigShouldNotContainRecipient(key string) error {
	cfg, err := c.saved()
	if err != nil {
		return err
	}
	if _, ok := cfg.Notification.Recipients[key]; ok {
		return fmt.Errorf("recipient %q should have been removed", key)
	}
	for _, k := range cfg.Notification.SendTo {
		if k == key {
			return fmt.Errorf("recipient %q still in send_to", key)
		}
	}
	return nil
}

func (c *configContext) theSavedConfigShouldSendSummariesTo(key string) error {
	cfg, err := c.saved()
	if err != nil {
		return err
	}
	for _, k := range cfg.Notification.SendTo {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("expected %q in send_to, got %v", key, cfg.Notification.SendTo)
}

func (c *configContext) theSmallImageThresholdShouldBe(expected int) error {
	if c.config.Compression.SmallImageThreshold != int64(expected) {
		return fmt.Errorf("expected threshold %d, got %d", expected, c.config.Compression.SmallImageThreshold)
	}
	return nil
}

func (c *configContext) theImageEngineShouldBe(expected string) error {
	if c.config.Compression.ImageEngine != expected {
		return fmt.Errorf("expected image engine %q, got %q", expected, c.config.Compression.ImageEngine)
	}
	return nil
}

func (c *configContext) theCommandShouldSucceed() error {
	if c.err != nil {
		return fmt.Errorf("expected success, got: %v", c.err)
	}
	return nil
}

func (c *configContext) theCommandShouldFailWith(expected string) error {
	if c.err == nil {
		return fmt.Errorf("expected error containing %q, got success", expected)
	}
	if !strings.Contains(c.err.Error(), expected) {
		return fmt.Errorf("expected error containing %q, got: %v", expected, c.err)
	}
	return nil
}

func (c *configContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(c.output.String(), expected) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", expected, c.output.String())
	}
	return nil
}
