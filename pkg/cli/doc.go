/*
Package cli provides helpers shared by the gatekeeper commands.

Command results that implement Tabular render as aligned text or CSV;
JSON output encodes the value itself:

	f, err := cli.ParseFormat(output)
	if err != nil {
		return err
	}
	return cli.NewFormatter(f).FormatTo(os.Stdout, result)

SetupSignalHandler cancels a context on SIGINT or SIGTERM and OnReload runs
a callback for every SIGHUP:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
	cli.OnReload(ctx, func() { reload() })

ConfigError and CommandError carry the failing file or command; ExitCode
maps them to the process exit status.
*/
package cli
