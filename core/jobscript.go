package core

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Data for HPC job script
/*
#!/bin/bash
#BSUB -nnodes 2
#BSUB -W 00:30
jsrun --nrs=2 ./model
*/
type JobScript struct {
	Shell string
	// Args parsed from directive lines, in order
	Args   []string
	Script []byte
}

// ParseJobScript reads the leading directive block (e.g. "#SBATCH") of a job script.
func ParseJobScript(directive, filename string) (JobScript, error) {
	file, err := os.Open(filename)
	if err != nil {
		return JobScript{}, err
	}
	defer file.Close()
	return ReadJobScript(directive, file)
}

func ReadJobScript(directive string, r io.Reader) (JobScript, error) {
	var args []string
	var script []byte

	shell := "/bin/sh"
	prefix := "#" + directive
	scanner := bufio.NewScanner(r)
	first := true
	parsed := false
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "#!") {
				shell = strings.TrimSpace(line[2:])
				continue
			}
		}
		if !parsed {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, prefix) {
				args = append(args, strings.Fields(trimmed[len(prefix):])...)
				continue
			}
			// blank lines and comments may sit between directives
			if len(trimmed) == 0 || strings.HasPrefix(trimmed, "#") {
				continue
			}
			parsed = true
		}
		script = append(script, scanner.Bytes()...)
		script = append(script, '\n')
	}
	if err := scanner.Err(); err != nil {
		return JobScript{}, err
	}
	return JobScript{
		Shell:  shell,
		Args:   args,
		Script: script,
	}, nil
}

// WriteJobScript renders a script with one "#<directive> <line>" per directive line.
func WriteJobScript(shell, directive string, directives []string, body []string) string {
	var b strings.Builder
	b.WriteString("#!" + shell + "\n")
	for _, d := range directives {
		b.WriteString("#" + directive + " " + d + "\n")
	}
	b.WriteString("\n")
	for _, line := range body {
		b.WriteString(line + "\n")
	}
	return b.String()
}
