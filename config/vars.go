package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Variable values live outside the config in ~/.inquest/vars.txt, one
// NAME=value per line. File entries override block defaults, which keeps
// API keys and other secrets out of checked-in HCL.

func GetVarsFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".inquest", "vars.txt"), nil
}

// LoadVarsFromFile reads the vars file. A missing file is an empty set,
// not an error. Blank lines and #-comments are skipped.
func LoadVarsFromFile() (map[string]string, error) {
	vars := make(map[string]string)

	path, err := GetVarsFilePath()
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return vars, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name, value, ok := strings.Cut(line, "="); ok {
			vars[name] = value
		}
	}

	return vars, scanner.Err()
}

// SaveVarsToFile rewrites the whole vars file with mode 0600.
func SaveVarsToFile(vars map[string]string) error {
	path, err := GetVarsFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	for name, value := range vars {
		if _, err := fmt.Fprintf(file, "%s=%s\n", name, value); err != nil {
			return err
		}
	}

	return nil
}

func GetVar(name string) (string, error) {
	vars, err := LoadVarsFromFile()
	if err != nil {
		return "", err
	}
	value, ok := vars[name]
	if !ok {
		return "", fmt.Errorf("variable '%s' not found", name)
	}
	return value, nil
}

func SetVar(name, value string) error {
	vars, err := LoadVarsFromFile()
	if err != nil {
		return err
	}
	vars[name] = value
	return SaveVarsToFile(vars)
}

func DeleteVar(name string) error {
	vars, err := LoadVarsFromFile()
	if err != nil {
		return err
	}
	if _, ok := vars[name]; !ok {
		return fmt.Errorf("variable '%s' not found", name)
	}
	delete(vars, name)
	return SaveVarsToFile(vars)
}

// ResolveVariableValue returns the effective value for a variable: the
// vars file wins over the config default.
func ResolveVariableValue(v *Variable) (string, error) {
	fileVars, err := LoadVarsFromFile()
	if err != nil {
		return "", err
	}

	if fileValue, ok := fileVars[v.Name]; ok {
		return fileValue, nil
	}

	return v.Default, nil
}
