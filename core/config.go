package core

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

const (
	HpcConfigPath      = "/.config/smartsim-hpc/"
	HpcConfigFilename  = "config.json"
	HpcTargetFilename  = "target"
	HpcConfigFilePerms = 0600
)

const HpcConfigEnv = "SMARTSIM_HPC_CONFIG"

const DefaultProfile = "default"

var ErrNoConfig = errors.New("smartsim-hpc config not found")

// Layout for config file
/*
{
	"default": {
		"launcher": "lsf",
		"project": "e3sm",
		"walltime": "00:30",
		"interface": "ib0",
		"db_port": 6379
	}
}
*/
type Profile struct {
	Launcher  string   `json:"launcher"`
	Project   string   `json:"project,omitempty"`
	Account   string   `json:"account,omitempty"`
	Partition string   `json:"partition,omitempty"`
	Queue     string   `json:"queue,omitempty"`
	Walltime  string   `json:"walltime,omitempty"`
	Interface string   `json:"interface,omitempty"`
	DbPort    int      `json:"db_port,omitempty"`
	HostList  []string `json:"host_list,omitempty"`
}

type Config map[string]Profile

func fileExist(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// Build path for config file
// Set from environment or use $HOME
func ConfigPath() string {
	if configPath := os.Getenv(HpcConfigEnv); len(configPath) > 0 {
		return configPath
	}
	return filepath.Join(os.Getenv("HOME")+HpcConfigPath, HpcConfigFilename)
}

func targetPath() string {
	return filepath.Join(filepath.Dir(ConfigPath()), HpcTargetFilename)
}

func WriteConfig(config Config) error {
	configFile := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(configFile), 0744); err != nil {
		return err
	}
	file, err := json.MarshalIndent(config, "", "	")
	if err != nil {
		return err
	}
	// Ensure config file uses proper permissions
	os.Chmod(configFile, HpcConfigFilePerms)
	return ioutil.WriteFile(configFile, file, HpcConfigFilePerms)
}

func ReadConfig() (Config, error) {
	filename := ConfigPath()
	if !fileExist(filename) {
		return Config{}, ErrNoConfig
	}
	bytes, err := ioutil.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}
	var config Config
	if err := json.Unmarshal(bytes, &config); err != nil {
		return Config{}, errors.New("invalid smartsim-hpc config: " + err.Error())
	}
	// Check if any profile was found in config file
	if len(config) == 0 {
		return Config{}, errors.New("invalid smartsim-hpc config: no profiles")
	}
	return config, nil
}

// WriteConfigTarget selects the profile used when none is named
func WriteConfigTarget(profile string) error {
	return ioutil.WriteFile(targetPath(), []byte(profile+"\n"), HpcConfigFilePerms)
}

func ReadConfigTarget() string {
	if data, err := ioutil.ReadFile(targetPath()); err == nil {
		if target := strings.TrimSpace(string(data)); len(target) > 0 {
			return target
		}
	}
	return DefaultProfile
}

// GetProfile returns the named profile, or the target profile when name is
// empty. A missing config file yields an empty profile.
func GetProfile(name string) (Profile, error) {
	config, err := ReadConfig()
	if errors.Is(err, ErrNoConfig) {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, err
	}
	if len(name) == 0 {
		name = ReadConfigTarget()
	}
	if profile, ok := config[name]; ok {
		return profile, nil
	}
	if name == DefaultProfile {
		return Profile{}, nil
	}
	return Profile{}, errors.New("profile " + name + " does not exist")
}
