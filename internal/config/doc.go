// Package config loads retain.json or retain.yaml project files.
//
// # Configuration File Structure
//
//	name: dashboard
//	root: app
//	props:
//	  title: Overview
//	log:
//	  level: debug
//	  format: text
//	scheduler:
//	  tick: 16ms
//	loader:
//	  dir: components
//	  timeout: 10s
//	  components:
//	    chart: https://cdn.example.com/chart.rtpl
//	    legend: s3://widgets/legend.yaml
//	render:
//	  progressive: true
//	mirror:
//	  addr: localhost:7070
//	metrics:
//	  enabled: true
//	state:
//	  path: state.db
//
// The same keys are accepted in JSON. Durations use Go syntax.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Mirror:", cfg.Mirror.Addr)
package config
