package config

// DefaultConfigYAML 内置默认配置（可被外部 config.yaml 或环境变量覆盖）
var DefaultConfigYAML = []byte(`server:
  port: ":8080"
  mode: "debug"
  base_url: "http://localhost:8080"

database:
  host: "127.0.0.1"
  port: "3306"
  username: "minty"
  password: "minty"
  dbname: "minty"
  charset: "utf8mb4"

jwt:
  secret: "change-me-in-production"
  expire_hours: 24

email:
  enabled: false
  host: "smtp.example.com"
  port: 465
  username: ""
  password: ""
  from: "Minty 记账"

reminder:
  enabled: true
  interval_minutes: 60
  jitter_seconds: 30
`)
