package services

import "github.com/melih/lighthouse-panel/internal/core/domain"

func envVar(key, value string, required bool, description string) domain.EnvVar {
	return domain.EnvVar{Key: key, Value: value, Required: required, Description: description}
}

// DefaultCatalog is the built-in set of installable applications.
func DefaultCatalog() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{
			Name: "WordPress", Slug: "wordpress", Icon: "📝", Category: domain.CategoryWeb,
			Description: "Popular blogging and CMS platform",
			Image:       "wordpress", Tag: "latest",
			Ports:   []domain.PortBinding{{Container: 80, Host: 8080}},
			Volumes: []domain.VolumeBinding{{Container: "/var/www/html", Host: "/data/wordpress"}},
			Environment: []domain.EnvVar{
				envVar("WORDPRESS_DB_HOST", "", true, "MySQL host"),
				envVar("WORDPRESS_DB_USER", "", true, "MySQL user"),
				envVar("WORDPRESS_DB_PASSWORD", "", true, "MySQL password"),
				envVar("WORDPRESS_DB_NAME", "wordpress", true, "Database name"),
			},
			MinMemoryMB: 256, MinCPU: 0.5, Website: "https://wordpress.org", Popular: true,
		},
		{
			Name: "MySQL", Slug: "mysql", Icon: "🗄️", Category: domain.CategoryDatabase,
			Description: "Popular relational database",
			Image:       "mysql", Tag: "8.0",
			Ports:   []domain.PortBinding{{Container: 3306, Host: 3306}},
			Volumes: []domain.VolumeBinding{{Container: "/var/lib/mysql", Host: "/data/mysql"}},
			Environment: []domain.EnvVar{
				envVar("MYSQL_ROOT_PASSWORD", "", true, "Root password"),
				envVar("MYSQL_DATABASE", "", false, "Default database"),
			},
			MinMemoryMB: 512, MinCPU: 1, Website: "https://mysql.com", Popular: true,
		},
		{
			Name: "PostgreSQL", Slug: "postgresql", Icon: "🐘", Category: domain.CategoryDatabase,
			Description: "Powerful open source database",
			Image:       "postgres", Tag: "15",
			Ports:   []domain.PortBinding{{Container: 5432, Host: 5432}},
			Volumes: []domain.VolumeBinding{{Container: "/var/lib/postgresql/data", Host: "/data/postgres"}},
			Environment: []domain.EnvVar{
				envVar("POSTGRES_PASSWORD", "", true, "Postgres password"),
				envVar("POSTGRES_USER", "postgres", false, "User name"),
				envVar("POSTGRES_DB", "", false, "Default database"),
			},
			MinMemoryMB: 512, MinCPU: 1, Website: "https://postgresql.org", Popular: true,
		},
		{
			Name: "Redis", Slug: "redis", Icon: "⚡", Category: domain.CategoryDatabase,
			Description: "In-memory data structure store",
			Image:       "redis", Tag: "7",
			Ports:       []domain.PortBinding{{Container: 6379, Host: 6379}},
			Volumes:     []domain.VolumeBinding{{Container: "/data", Host: "/data/redis"}},
			MinMemoryMB: 128, MinCPU: 0.25, Website: "https://redis.io", Popular: true,
		},
		{
			Name: "Nginx", Slug: "nginx", Icon: "🌐", Category: domain.CategoryWeb,
			Description: "High performance web server",
			Image:       "nginx", Tag: "alpine",
			Ports: []domain.PortBinding{{Container: 80, Host: 80}, {Container: 443, Host: 443}},
			Volumes: []domain.VolumeBinding{
				{Container: "/usr/share/nginx/html", Host: "/data/nginx/html"},
				{Container: "/etc/nginx/conf.d", Host: "/data/nginx/conf"},
			},
			MinMemoryMB: 64, MinCPU: 0.25, Website: "https://nginx.org", Popular: true,
		},
		{
			Name: "Nextcloud", Slug: "nextcloud", Icon: "☁️", Category: domain.CategoryStorage,
			Description: "Self-hosted cloud storage",
			Image:       "nextcloud", Tag: "latest",
			Ports:   []domain.PortBinding{{Container: 80, Host: 8081}},
			Volumes: []domain.VolumeBinding{{Container: "/var/www/html", Host: "/data/nextcloud"}},
			Environment: []domain.EnvVar{
				envVar("MYSQL_HOST", "", true, "MySQL host"),
				envVar("MYSQL_DATABASE", "nextcloud", true, "Database name"),
				envVar("MYSQL_USER", "", true, "MySQL user"),
				envVar("MYSQL_PASSWORD", "", true, "MySQL password"),
			},
			MinMemoryMB: 512, MinCPU: 1, Website: "https://nextcloud.com", Popular: true,
		},
		{
			Name: "GitLab", Slug: "gitlab", Icon: "🦊", Category: domain.CategoryDevelopment,
			Description: "DevOps platform and Git repository hosting",
			Image:       "gitlab/gitlab-ce", Tag: "latest",
			Ports: []domain.PortBinding{
				{Container: 80, Host: 8082},
				{Container: 443, Host: 8443},
				{Container: 22, Host: 2222},
			},
			Volumes: []domain.VolumeBinding{
				{Container: "/etc/gitlab", Host: "/data/gitlab/config"},
				{Container: "/var/log/gitlab", Host: "/data/gitlab/logs"},
				{Container: "/var/opt/gitlab", Host: "/data/gitlab/data"},
			},
			Environment: []domain.EnvVar{
				envVar("GITLAB_OMNIBUS_CONFIG", "", false, "GitLab configuration"),
			},
			MinMemoryMB: 4096, MinCPU: 2, Website: "https://gitlab.com", Popular: true,
		},
		{
			Name: "Portainer", Slug: "portainer", Icon: "🐳", Category: domain.CategoryMonitoring,
			Description: "Docker management UI",
			Image:       "portainer/portainer-ce", Tag: "latest",
			Ports: []domain.PortBinding{{Container: 9000, Host: 9000}},
			Volumes: []domain.VolumeBinding{
				{Container: "/data", Host: "/data/portainer"},
				{Container: "/var/run/docker.sock", Host: "/var/run/docker.sock"},
			},
			MinMemoryMB: 128, MinCPU: 0.25, Website: "https://portainer.io", Popular: true,
		},
		{
			Name: "Grafana", Slug: "grafana", Icon: "📊", Category: domain.CategoryMonitoring,
			Description: "Metrics visualization platform",
			Image:       "grafana/grafana", Tag: "latest",
			Ports:   []domain.PortBinding{{Container: 3000, Host: 3001}},
			Volumes: []domain.VolumeBinding{{Container: "/var/lib/grafana", Host: "/data/grafana"}},
			Environment: []domain.EnvVar{
				envVar("GF_SECURITY_ADMIN_PASSWORD", "", true, "Admin password"),
			},
			MinMemoryMB: 256, MinCPU: 0.5, Website: "https://grafana.com",
		},
		{
			Name: "Node.js", Slug: "nodejs", Icon: "💚", Category: domain.CategoryDevelopment,
			Description: "JavaScript runtime",
			Image:       "node", Tag: "20-alpine",
			Ports:   []domain.PortBinding{{Container: 3000, Host: 3002}},
			Volumes: []domain.VolumeBinding{{Container: "/app", Host: "/data/nodejs"}},
			Environment: []domain.EnvVar{
				envVar("NODE_ENV", "production", false, "Environment"),
			},
			MinMemoryMB: 256, MinCPU: 0.5, Website: "https://nodejs.org",
		},
	}
}
