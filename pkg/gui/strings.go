package gui

const (
	trayTooltip = "DataCollector - battery telemetry"
	quitTooltip = `Quit the menubar app, but keep the datacollector daemon running.

Samples keep being collected and delivered while the daemon runs. Use "Stop Monitoring" to pause collection, or "datacollector uninstall" to remove the daemon.`
)
