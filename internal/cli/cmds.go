package cli

func regCommands() {
	//Proving
	rootCmd.AddCommand(stdioCmd)
	rootCmd.AddCommand(rpcCmd)
	rootCmd.AddCommand(serveCmd)

	//Workers
	rootCmd.AddCommand(workerCmd)

	//Tools
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(replayCmd)
}
