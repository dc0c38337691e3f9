package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"klient-plikow/internal/apiclient"
	"klient-plikow/internal/auth"
	"klient-plikow/internal/clipboard"
	"klient-plikow/internal/config"
	"klient-plikow/internal/quota"
	"klient-plikow/internal/storage"
	"klient-plikow/internal/store"
)

const usage = `Użycie: client <polecenie> [argumenty]

Polecenia:
  login <login>            zaloguj się (hasło czytane ze stdin)
  logout                   wyloguj się
  register                 załóż konto
  me                       pokaż bieżącego użytkownika i zużycie miejsca
  ls [-user id]            wylistuj pliki
  upload <ścieżka> [-comment tekst]
  download <id> [-dir katalog]
  rm <id>                  usuń plik (z potwierdzeniem)
  comment <id> <tekst>     zmień komentarz pliku
  share <id>               skopiuj publiczny link do schowka
  watch                    obserwuj zużycie miejsca
  users                    (admin) wylistuj użytkowników
  user-update <id> [-active bool] [-password hasło] [-quota-gib n]
  user-create              (admin) załóż konto użytkownika
  user-rm <id>             (admin) usuń użytkownika (z potwierdzeniem)
`

type app struct {
	session *auth.Session
	files   *store.Files
	users   *store.Users
	stdin   *bufio.Reader
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nie można wczytać konfiguracji: %v", err)
	}

	var logger *zap.Logger
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Nie można zainicjować loggera: %v", err)
	}
	defer logger.Sync()

	tokenStore, err := auth.NewFileTokenStore(cfg.State.Dir)
	if err != nil {
		log.Fatalf("Nie można otworzyć katalogu stanu: %v", err)
	}
	tokens, err := auth.NewTokenCache(tokenStore)
	if err != nil {
		log.Fatalf("Nie można wczytać tokenu: %v", err)
	}

	api, err := apiclient.New(cfg.API.BaseURL, tokens, logger)
	if err != nil {
		log.Fatalf("Nie można zainicjować klienta API: %v", err)
	}

	if cfg.Metrics.Listen != "" {
		go func() {
			handler := promhttp.HandlerFor(api.Registry(), promhttp.HandlerOpts{})
			mux := http.NewServeMux()
			mux.Handle("/metrics", handler)
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	a := &app{
		session: auth.NewSession(api, tokens, logger),
		files:   store.NewFiles(api, logger),
		users:   store.NewUsers(api, logger),
		stdin:   bufio.NewReader(os.Stdin),
	}

	// Ctrl+C is the CLI's page-teardown: it aborts whatever request is in
	// flight, including the bootstrap below.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	if cmd != "login" && cmd != "register" {
		if err := a.session.Bootstrap(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("Nie można odtworzyć sesji: %v", err)
		}
	}

	if err := a.run(ctx, cmd, args); err != nil {
		if ctx.Err() != nil {
			os.Exit(130)
		}
		log.Fatalf("Błąd: %v", err)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.session.Logout(ctx)
	case "register":
		return a.register(ctx)
	case "me":
		return a.me(ctx)
	case "ls":
		return a.list(ctx, args)
	case "upload":
		return a.upload(ctx, args)
	case "download":
		return a.download(ctx, args)
	case "rm":
		return a.removeFile(ctx, args)
	case "comment":
		return a.comment(ctx, args)
	case "share":
		return a.share(ctx, args)
	case "watch":
		return a.watch(ctx)
	case "users":
		return a.listUsers(ctx)
	case "user-update":
		return a.userUpdate(ctx, args)
	case "user-create":
		return a.userCreate(ctx)
	case "user-rm":
		return a.userRemove(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("nieznane polecenie %q", cmd)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("podaj login")
	}
	password, err := a.prompt("Hasło: ")
	if err != nil {
		return err
	}

	user, err := a.session.Login(ctx, auth.Credentials{Username: args[0], Password: password})
	if err != nil {
		return err
	}
	fmt.Printf("Zalogowano jako %s\n", user.Username)
	return nil
}

func (a *app) register(ctx context.Context) error {
	var profile auth.RegisterProfile
	fields := []struct {
		label string
		dst   *string
	}{
		{"Login: ", &profile.Username},
		{"Email: ", &profile.Email},
		{"Imię i nazwisko: ", &profile.FullName},
		{"Hasło: ", &profile.Password},
		{"Powtórz hasło: ", &profile.ConfirmPassword},
	}
	for _, f := range fields {
		value, err := a.prompt(f.label)
		if err != nil {
			return err
		}
		*f.dst = value
	}

	user, err := a.session.Register(ctx, profile)
	if err != nil {
		return err
	}
	fmt.Printf("Utworzono konto %s\n", user.Username)
	return nil
}

func (a *app) me(ctx context.Context) error {
	user, err := a.session.FetchCurrentUser(ctx)
	if err != nil {
		return err
	}
	printStorage(user.Username, user.StorageUsed, user.MaxStorage)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	ownerID := fs.Int64("user", 0, "id użytkownika (tylko admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	files, err := a.files.List(ctx, *ownerID)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Printf("%6d  %10d B  %-30s  %s\n", f.ID, f.Size, f.OriginalName, f.Comment)
	}
	return nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("podaj ścieżkę pliku")
	}
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	comment := fs.String("comment", "", "komentarz do pliku")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	uploaded, err := a.files.Upload(ctx, filepath.Base(args[0]), file, *comment,
		func(sent, total int64) {
			fmt.Printf("\rWysyłanie... %3.0f%%", float64(sent)/float64(total)*100)
		})
	fmt.Println()
	if err != nil {
		return err
	}
	fmt.Printf("Wysłano %s (id %d)\n", uploaded.OriginalName, uploaded.ID)
	return nil
}

func (a *app) download(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	dir := fs.String("dir", ".", "katalog docelowy")
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}

	files, err := a.files.List(ctx, 0)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("file-%d", id)
	for _, f := range files {
		if f.ID == id {
			name = f.OriginalName
			break
		}
	}

	data, err := a.files.Download(ctx, id)
	if err != nil {
		return err
	}

	downloads, err := storage.NewDownloadDir(*dir)
	if err != nil {
		return err
	}
	path, err := downloads.Save(name, bytes.NewReader(data))
	if err != nil {
		return err
	}
	fmt.Printf("Zapisano %s\n", path)
	return nil
}

func (a *app) removeFile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}
	if !a.confirm("Czy na pewno usunąć ten plik? [t/N] ") {
		return nil
	}
	if err := a.files.Remove(ctx, id); err != nil {
		return err
	}
	fmt.Println("Usunięto")
	return nil
}

func (a *app) comment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("comment", flag.ContinueOnError)
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("podaj treść komentarza")
	}
	text := strings.Join(args[1:], " ")

	updated, err := a.files.Update(ctx, id, store.FileUpdate{Comment: &text})
	if err != nil {
		return err
	}
	fmt.Printf("Zmieniono komentarz pliku %s\n", updated.OriginalName)
	return nil
}

func (a *app) share(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}

	files, err := a.files.List(ctx, 0)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.ID == id {
			link := a.files.ShareURL(f)
			if err := clipboard.Copy(link); err != nil {
				// The error carries the raw URL; show it so the user can
				// copy manually.
				fmt.Println(err)
				return nil
			}
			fmt.Println("Skopiowano link do schowka")
			return nil
		}
	}
	return fmt.Errorf("nie znaleziono pliku o id %d", id)
}

func (a *app) watch(ctx context.Context) error {
	if !a.session.IsAuthenticated() {
		return fmt.Errorf("najpierw się zaloguj")
	}

	go a.session.Poll(ctx, 3*time.Second)

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if user := a.session.CurrentUser(); user != nil {
				printStorage(user.Username, user.StorageUsed, user.MaxStorage)
			}
		}
	}
}

func (a *app) listUsers(ctx context.Context) error {
	users, err := a.users.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		status := "aktywny"
		if !u.IsActive {
			status = "nieaktywny"
		}
		fmt.Printf("%4d  %-20s  %-30s  %6.1fG  %s\n",
			u.ID, u.Username, u.Email, quota.BytesToGiB(u.MaxStorage), status)
	}
	return nil
}

func (a *app) userUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user-update", flag.ContinueOnError)
	active := fs.String("active", "", "true/false")
	password := fs.String("password", "", "nowe hasło")
	quotaGiB := fs.Float64("quota-gib", 0, "nowy limit w GiB")
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}

	var fields store.UserUpdate
	if *active != "" {
		v := *active == "true"
		fields.IsActive = &v
	}
	if *password != "" {
		fields.Password = password
	}
	if *quotaGiB > 0 {
		fields.SetQuotaGiB(*quotaGiB)
	}

	updated, err := a.users.Update(ctx, id, fields)
	if err != nil {
		return err
	}
	fmt.Printf("Zaktualizowano użytkownika %s\n", updated.Username)
	return nil
}

func (a *app) userCreate(ctx context.Context) error {
	var params store.CreateUserParams
	fields := []struct {
		label string
		dst   *string
	}{
		{"Login: ", &params.Username},
		{"Email: ", &params.Email},
		{"Imię i nazwisko: ", &params.FullName},
		{"Hasło: ", &params.Password},
		{"Powtórz hasło: ", &params.ConfirmPassword},
	}
	for _, f := range fields {
		value, err := a.prompt(f.label)
		if err != nil {
			return err
		}
		*f.dst = value
	}

	created, err := a.users.Create(ctx, params)
	if err != nil {
		return err
	}
	fmt.Printf("Utworzono użytkownika %s (id %d)\n", created.Username, created.ID)
	return nil
}

func (a *app) userRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user-rm", flag.ContinueOnError)
	id, err := parseID(fs, args)
	if err != nil {
		return err
	}
	if !a.confirm("Czy na pewno usunąć tego użytkownika? [t/N] ") {
		return nil
	}
	if err := a.users.Remove(ctx, id); err != nil {
		return err
	}
	fmt.Println("Usunięto")
	return nil
}

func (a *app) prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := a.stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) confirm(label string) bool {
	answer, err := a.prompt(label)
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "t" || answer == "tak" || answer == "y"
}

func printStorage(username string, used, max int64) {
	percent := quota.UsagePercent(used, max)
	fmt.Printf("%s: %.2f GB z %.2f GB (%.0f%%)\n",
		username, quota.BytesToGiB(used), quota.BytesToGiB(max), percent)
	if percent >= quota.WarnThresholdPercent {
		fmt.Println("Uwaga: kończy się miejsce w chmurze!")
	}
}

func parseID(fs *flag.FlagSet, args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("podaj id")
	}
	var id int64
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return 0, fmt.Errorf("niepoprawne id %q", args[0])
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 0, err
	}
	return id, nil
}
