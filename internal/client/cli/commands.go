package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/dmitrijs2005/tentech/internal/common"
	catalog "github.com/dmitrijs2005/tentech/internal/server/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (a *App) flagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	addr := fs.String("s", DefaultServerAddr, "server gRPC address")
	return fs, addr
}

// call invokes a catalog method on a fresh connection and turns gRPC
// statuses into plain errors.
func (a *App) call(ctx context.Context, addr, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}

	conn, closeConn, err := a.dial(addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer closeConn()

	out, err := catalog.Invoke(ctx, conn, method, req)
	if err != nil {
		st := status.Convert(err)
		return nil, fmt.Errorf("%s: %s (%s)", method, st.Message(), st.Code())
	}
	return out, nil
}

// prompt returns v or, when empty, asks for it.
func (a *App) prompt(v, question string) (string, error) {
	if v != "" {
		return v, nil
	}
	return GetSimpleText(a.reader, question, a.out)
}

func (a *App) register(ctx context.Context, args []string) error {
	fs, addr := a.flagSet("register")
	username := fs.String("u", "", "user name")
	nickname := fs.String("n", "", "nickname used in the activation email")
	email := fs.String("e", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *username, err = a.prompt(*username, "Enter user name"); err != nil {
		return err
	}
	if *email, err = a.prompt(*email, "Enter email"); err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	out, err := a.call(ctx, *addr, catalog.MethodRegister, map[string]any{
		"username": *username,
		"nickname": *nickname,
		"email":    *email,
		"password": password,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered user id=%d. Check %s for the activation link.\n",
		int64(out.GetFields()["id"].GetNumberValue()), *email)
	return nil
}

func (a *App) activate(ctx context.Context, args []string) error {
	fs, addr := a.flagSet("activate")
	token := fs.String("t", "", "activation token (raw or escaped)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *token, err = a.prompt(*token, "Enter activation token"); err != nil {
		return err
	}

	out, err := a.call(ctx, *addr, catalog.MethodActivate, map[string]any{common.ActivationTokenParam: *token})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Activated %s at %s\n",
		out.GetFields()["username"].GetStringValue(), out.GetFields()["activated_at"].GetStringValue())
	return nil
}

func (a *App) resend(ctx context.Context, args []string) error {
	fs, addr := a.flagSet("resend")
	email := fs.String("e", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email, err = a.prompt(*email, "Enter email"); err != nil {
		return err
	}

	if _, err := a.call(ctx, *addr, catalog.MethodResendActivation, map[string]any{"email": *email}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Activation email sent.")
	return nil
}

func (a *App) loginPair(ctx context.Context, addr, username string) (string, string, error) {
	username, err := a.prompt(username, "Enter user name")
	if err != nil {
		return "", "", err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return "", "", err
	}

	out, err := a.call(ctx, addr, catalog.MethodLogin, map[string]any{"username": username, "password": password})
	if err != nil {
		return "", "", err
	}
	return out.GetFields()["access_token"].GetStringValue(), out.GetFields()["refresh_token"].GetStringValue(), nil
}

func (a *App) login(ctx context.Context, args []string) error {
	fs, addr := a.flagSet("login")
	username := fs.String("u", "", "user name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	access, refresh, err := a.loginPair(ctx, *addr, *username)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "access_token=%s\nrefresh_token=%s\n", access, refresh)
	return nil
}

func (a *App) addProduct(ctx context.Context, args []string) error {
	fs, addr := a.flagSet("add-product")
	username := fs.String("u", "", "user name")
	kind := fs.String("k", "", "product kind")
	duration := fs.Int("d", 0, "duration in seconds")
	image := fs.String("i", "", "image file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}

	access, _, err := a.loginPair(ctx, *addr, *username)
	if err != nil {
		return err
	}

	title, err := GetSimpleText(a.reader, "Enter title", a.out)
	if err != nil {
		return err
	}
	body, err := GetMultiline(a.reader, "Enter body", a.out)
	if err != nil {
		return err
	}
	rawTags, err := GetSimpleText(a.reader, "Enter tag ids (comma separated)", a.out)
	if err != nil {
		return err
	}
	tags, err := ParseTags(rawTags)
	if err != nil {
		return err
	}

	list := make([]any, 0, len(tags))
	for _, t := range tags {
		list = append(list, int64(t))
	}

	ctx = metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, access)

	var img string
	if *image != "" {
		if img, err = a.uploadImage(ctx, *addr, *image); err != nil {
			return err
		}
	}

	out, err := a.call(ctx, *addr, catalog.MethodCreateProduct, map[string]any{
		"title":    title,
		"body":     body,
		"img":      img,
		"kind":     *kind,
		"duration": *duration,
		"tags":     list,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Created product %s\n", out.GetFields()["uuid"].GetStringValue())
	return nil
}

// uploadImage stores the file at path through a presigned URL and returns
// its object key. ctx must carry the access token.
func (a *App) uploadImage(ctx context.Context, addr, path string) (string, error) {
	data, err := a.readFile(path)
	if err != nil {
		return "", err
	}

	out, err := a.call(ctx, addr, catalog.MethodImageUploadURL, nil)
	if err != nil {
		return "", err
	}

	if err := a.upload(ctx, out.GetFields()["url"].GetStringValue(), data); err != nil {
		return "", fmt.Errorf("image upload: %w", err)
	}
	return out.GetFields()["key"].GetStringValue(), nil
}

func (a *App) migrateCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(a.out)
	dsn := fs.String("d", "", "PostgreSQL DSN")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		return fmt.Errorf("migrate: -d is required")
	}

	if err := a.migrate(ctx, *dsn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(a.out, "Migrations applied.")
	return nil
}
