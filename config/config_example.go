package config

// Example usage of the Config Manager
//
// Example 1: Load configuration (config.yaml, or config/config.yaml when present)
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Example 2: Use a custom path, as the -config flag does
//
//	manager := config.NewManager("accounts.yaml")
//	config.UseManager(manager)
//	cfg, err := manager.Load()
//
// Example 3: Add a scheduled batch and save it back to YAML
//
//	manager := config.GetManager()
//	cfg := manager.Get()
//	cfg.Schedules = append(cfg.Schedules, config.Schedule{
//		Name:     "morning-likes",
//		Cron:     "0 9 * * *",
//		Action:   "like",
//		Target:   "https://www.youtube.com/watch?v=dQw4w9WgXcQ&lc=Ugx123",
//		Accounts: []string{"alice", "bob"},
//		Delay:    30 * time.Second,
//	})
//	if err := manager.Save(cfg); err != nil {
//		log.Fatal(err)
//	}
//
// A complete file looks like:
//
//	server:
//	  port: "8080"
//	credentials:
//	  client_secrets_path: credentials.json
//	  tokens_dir: ./tokens
//	browser:
//	  profiles_dir: ./profiles
//	  headless: false
//	  navigation_timeout: 60s
//	  locate_timeout: 10s
//	  scan_timeout: 20s
//	  confirm_timeout: 5s
//	pacing:
//	  delay: 30s
//	  jitter: 15s
//	retry:
//	  max_retries: 0
//	database:
//	  url: sqlite3:./data.db
//	schedules:
//	  - name: launch-comment
//	    cron: "30 18 * * 5"
//	    action: comment
//	    target: https://youtu.be/dQw4w9WgXcQ
//	    text: "Great video!"
