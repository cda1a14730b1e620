// cmd/migrator/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/config"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/database"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/seed"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/validation"
	"github.com/Ultrahd-dev/assignment-portal/backend/migrations"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrator",
		Short:        "Миграции и начальные данные портала заданий",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			logging.Init(logging.Config{Level: "info", Format: "console"})
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/config.yaml", "путь к файлу конфигурации")

	root.AddCommand(
		gooseCmd("up", "Применить все непримененные миграции", goose.UpContext),
		gooseCmd("down", "Откатить последнюю миграцию", goose.DownContext),
		gooseCmd("status", "Показать статус миграций", goose.StatusContext),
		seedCmd(),
		createAdminCmd(),
	)
	return root
}

// withDB загружает конфигурацию и открывает подключение к БД
func withDB(ctx context.Context, fn func(db *sql.DB, cfg *config.Config) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrator работает только с database.driver=postgres, получено %q", cfg.Database.Driver)
	}

	db, err := database.Open(ctx, cfg.Database.GetDSN(), database.DefaultPingPolicy)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db, cfg)
}

func gooseCmd(use, short string, run func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(db *sql.DB, _ *config.Config) error {
				goose.SetBaseFS(migrations.FS)
				if err := goose.SetDialect("postgres"); err != nil {
					return err
				}
				if err := run(cmd.Context(), db, "."); err != nil {
					return fmt.Errorf("goose %s: %w", use, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "goose %s: готово\n", use)
				return nil
			})
		},
	}
}

func newService(db *sql.DB, cfg *config.Config) *users.Service {
	return users.NewService(users.NewRepository(db), users.NewPasswordHasher(cfg.Password.BcryptCost))
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "seed FILE",
		Short:   "Создать учетные записи из YAML файла",
		Example: "  migrator seed configs/seed.example.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(db *sql.DB, cfg *config.Config) error {
				res, err := seed.Apply(cmd.Context(), newService(db, cfg), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Создано: %d, пропущено: %d\n", res.Created, res.Skipped)
				return nil
			})
		},
	}
}

func createAdminCmd() *cobra.Command {
	var input users.CreateAdminInput

	cmd := &cobra.Command{
		Use:     "create-admin",
		Short:   "Создать администратора",
		Example: "  migrator create-admin --name Root --email admin@example.com --password secret1",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input.Password == "" {
				input.Password = os.Getenv("ADMIN_PASSWORD")
			}
			if err := validation.ValidateStruct(&input); err != nil {
				return err
			}
			return withDB(cmd.Context(), func(db *sql.DB, cfg *config.Config) error {
				admin, err := newService(db, cfg).CreateAdmin(cmd.Context(), input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Администратор создан: id=%d email=%s\n", admin.ID, admin.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "", "имя администратора")
	cmd.Flags().StringVar(&input.Email, "email", "", "email администратора")
	cmd.Flags().StringVar(&input.Password, "password", "", "пароль (или ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
