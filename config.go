package main

import (
	"errors"
	"sort"
	"strconv"

	core "smartsim.io/smartsim-hpc/core"
)

type ConfigHelpFlags struct {
	Help bool `short:"h" long:"help" description:"Show this help message"`
}

type ConfigCommand struct {
	Config ConfigHelpFlags   `group:"Configuration Options"`
	Set    ConfigSetCommand  `command:"set"`
	Use    ConfigUseCommand  `command:"use"`
	List   ConfigListCommand `command:"list"`
}

type ConfigSetCommand struct {
	Config    ConfigHelpFlags `group:"Configuration Options" hidden:"true"`
	Launcher  string          `short:"l" long:"launcher" description:"local, slurm or lsf"`
	Project   string          `short:"P" long:"project" description:"LSF project (bsub -P)"`
	Account   string          `short:"A" long:"account" description:"Slurm account"`
	Partition string          `short:"p" long:"partition" description:"Slurm partition"`
	Queue     string          `short:"q" long:"queue" description:"LSF queue"`
	Walltime  string          `short:"t" long:"time" description:"default walltime"`
	Interface string          `short:"i" long:"interface" description:"network interface of the database"`
	DbPort    int             `long:"db-port" description:"database port"`
	Hosts     []string        `short:"w" long:"hostlist" description:"default hosts"`
	Args      struct {
		Profile string `positional-arg-name:"profile" description:"profile name"`
	} `positional-args:"true" required:"1"`
}

type ConfigUseCommand struct {
	Config ConfigHelpFlags `group:"Configuration Options" hidden:"true"`
	Args   struct {
		Profile string `positional-arg-name:"profile" description:"profile name"`
	} `positional-args:"true" required:"1"`
}

type ConfigListCommand struct {
	Config ConfigHelpFlags `group:"Configuration Options" hidden:"true"`
}

var configCommand ConfigCommand

func (x *ConfigCommand) Execute(args []string) error {
	if x.Config.Help {
		return createHelpErr()
	}
	return nil
}

func validLauncher(name string) bool {
	switch name {
	case "", "local", "slurm", "lsf":
		return true
	}
	return false
}

// Execute creates the profile or updates the options given on the command
// line, leaving the others untouched.
func (x *ConfigSetCommand) Execute(args []string) error {
	if x.Config.Help {
		return createHelpErr()
	}
	if !validLauncher(x.Launcher) {
		return errors.New("config: unknown launcher " + x.Launcher)
	}
	config, err := core.ReadConfig()
	if err != nil && !errors.Is(err, core.ErrNoConfig) {
		return err
	}
	if config == nil {
		config = core.Config{}
	}
	profile := config[x.Args.Profile]
	set := func(dst *string, v string) {
		if len(v) > 0 {
			*dst = v
		}
	}
	set(&profile.Launcher, x.Launcher)
	set(&profile.Project, x.Project)
	set(&profile.Account, x.Account)
	set(&profile.Partition, x.Partition)
	set(&profile.Queue, x.Queue)
	set(&profile.Walltime, x.Walltime)
	set(&profile.Interface, x.Interface)
	if x.DbPort != 0 {
		profile.DbPort = x.DbPort
	}
	if len(x.Hosts) > 0 {
		profile.HostList = x.Hosts
	}
	config[x.Args.Profile] = profile
	return core.WriteConfig(config)
}

func (x *ConfigUseCommand) Execute(args []string) error {
	if x.Config.Help {
		return createHelpErr()
	}
	config, err := core.ReadConfig()
	if err != nil {
		return err
	}
	if _, ok := config[x.Args.Profile]; ok {
		return core.WriteConfigTarget(x.Args.Profile)
	}
	return errors.New(x.Args.Profile + " configuration does not exist")
}

func (x *ConfigListCommand) Execute(args []string) error {
	if x.Config.Help {
		return createHelpErr()
	}
	config, err := core.ReadConfig()
	if err != nil {
		return err
	}
	target := core.ReadConfigTarget()
	names := make([]string, 0, len(config))
	for name := range config {
		names = append(names, name)
	}
	sort.Strings(names)
	table := [][]string{{"", "Profile", "Launcher", "Project", "Account", "Walltime", "Interface", "DB-Port"}}
	for _, name := range names {
		p := config[name]
		mark := ""
		if name == target {
			mark = "*"
		}
		port := "-"
		if p.DbPort != 0 {
			port = strconv.Itoa(p.DbPort)
		}
		table = append(table, []string{mark, name, p.Launcher, dash(p.Project), dash(p.Account),
			dash(p.Walltime), dash(p.Interface), port})
	}
	printTable(table)
	return nil
}

func dash(s string) string {
	if len(s) == 0 {
		return "-"
	}
	return s
}

func init() {
	parser.AddCommand("config",
		"Launcher profiles",
		"The config command manages launcher profiles: default launcher, project, account, walltime and database options",
		&configCommand)
}
