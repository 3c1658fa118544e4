package executor

import "strconv"

// linuxSignals names the Linux signal numbers. Container and jail exit
// statuses use Linux numbering whatever the host is.
var linuxSignals = map[int]string{
	1:  "SIGHUP",
	2:  "SIGINT",
	3:  "SIGQUIT",
	4:  "SIGILL",
	5:  "SIGTRAP",
	6:  "SIGABRT",
	7:  "SIGBUS",
	8:  "SIGFPE",
	9:  "SIGKILL",
	10: "SIGUSR1",
	11: "SIGSEGV",
	12: "SIGUSR2",
	13: "SIGPIPE",
	14: "SIGALRM",
	15: "SIGTERM",
	16: "SIGSTKFLT",
	17: "SIGCHLD",
	18: "SIGCONT",
	19: "SIGSTOP",
	20: "SIGTSTP",
	21: "SIGTTIN",
	22: "SIGTTOU",
	23: "SIGURG",
	24: "SIGXCPU",
	25: "SIGXFSZ",
	26: "SIGVTALRM",
	27: "SIGPROF",
	28: "SIGWINCH",
	29: "SIGIO",
	30: "SIGPWR",
	31: "SIGSYS",
}

// LinuxSignalName returns the name of Linux signal n, or "SIG<n>".
func LinuxSignalName(n int) string {
	if name, ok := linuxSignals[n]; ok {
		return name
	}
	return "SIG" + strconv.Itoa(n)
}

// ApplyShellStatus records a status reported the way shells, nsjail and
// container runtimes do: 128+N for a child killed by signal N, the exit code
// otherwise. A program that deliberately exits with 129-159 is
// indistinguishable from a signaled one under this convention.
func (r *ExecutionResult) ApplyShellStatus(status int) {
	if status > 128 && status < 128+32 {
		r.SetSignal(LinuxSignalName(status - 128))
		return
	}
	r.SetExitCode(status)
}
