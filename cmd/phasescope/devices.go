package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jotoft/loopback-visualizer-sub000/internal/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture-capable audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := device.ListDevices()
		if err != nil {
			return err
		}

		if len(infos) == 0 {
			fmt.Println("no capture devices found")
			return nil
		}

		for _, info := range infos {
			marker := " "
			if info.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %3d  %-48s %d ch @ %.0f Hz\n",
				marker, info.Index, info.Name,
				info.MaxInputChannels, info.DefaultSampleRate)
		}
		fmt.Println("\n* default input device")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
