package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"otmitm/wire/opcode"
)

var directionNames = map[string]uint8{
	"north": opcode.ClientWalkNorth,
	"east":  opcode.ClientWalkEast,
	"south": opcode.ClientWalkSouth,
	"west":  opcode.ClientWalkWest,
}

var turnDirectionNames = map[string]uint8{
	"north": opcode.ClientTurnNorth,
	"east":  opcode.ClientTurnEast,
	"south": opcode.ClientTurnSouth,
	"west":  opcode.ClientTurnWest,
}

func parseDirection(table map[string]uint8, s string) (uint8, error) {
	d, ok := table[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown direction %q (want north/east/south/west)", s)
	}
	return d, nil
}

// NewRootCommand builds the otmitm operator CLI, issuing every
// operation from spec section 6 against the dashboard's control API
// at dashboardAddr.
func NewRootCommand(dashboardAddr string) *cobra.Command {
	var addr string
	client := func() *Client { return NewClient(addr) }

	root := &cobra.Command{
		Use:   "otmitm",
		Short: "otmitm — operator CLI for the running proxy bot",
		Long:  "Drives the running otmitm supervisor over its dashboard control API: walking, item use, recordings, playback, and task toggling.",
	}
	root.PersistentFlags().StringVar(&addr, "addr", dashboardAddr, "dashboard base URL, e.g. http://127.0.0.1:8089")

	root.AddCommand(
		newStartBotCmd(client),
		newWalkCmd(client),
		newTurnCmd(client),
		newSayCmd(client),
		newAttackCmd(client),
		newFollowCmd(client),
		newUseItemCmd(client),
		newMoveItemCmd(client),
		newLookAtCmd(client),
		newSetFightModesCmd(client),
		newLogoutCmd(client),
		newToggleActionCmd(client),
		newRestartActionCmd(client),
		newListActionsCmd(client),
		newStartRecordingCmd(client),
		newStopRecordingCmd(client),
		newPlayRecordingCmd(client),
		newStopPlaybackCmd(client),
		newListRecordingsCmd(client),
		newDeleteRecordingCmd(client),
		newGetStatusCmd(client),
		newStatusTUICmd(client),
	)
	return root
}

func newStartBotCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "start-bot",
		Short: "start all enabled tasks for the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().StartBot()
		},
	}
}

func newWalkCmd(client func() *Client) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "walk <direction>",
		Short: "walk(dir, steps): send single-step walks in a direction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := parseDirection(directionNames, args[0])
			if err != nil {
				return err
			}
			return client().Walk(dir, steps)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of single-step walks to send")
	return cmd
}

func newTurnCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "turn <direction>",
		Short: "turn(dir): face a direction without moving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := parseDirection(turnDirectionNames, args[0])
			if err != nil {
				return err
			}
			return client().Turn(dir)
		},
	}
}

func newSayCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>",
		Short: "say(text): speak as the bot's player",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().Say(strings.Join(args, " "))
		},
	}
}

func newAttackCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "attack <creature-id>",
		Short: "attack(id): target a creature for combat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint32(args[0])
			if err != nil {
				return err
			}
			return client().Attack(id)
		},
	}
}

func newFollowCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "follow <creature-id>",
		Short: "follow(id): follow a creature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint32(args[0])
			if err != nil {
				return err
			}
			return client().Follow(id)
		},
	}
}

func newUseItemCmd(client func() *Client) *cobra.Command {
	var x, y, itemID int
	var z, stackPos, index int
	cmd := &cobra.Command{
		Use:   "use-item",
		Short: "use_item(x,y,z,id,stack,index): use an item at a tile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().UseItem(uint16(x), uint16(y), uint8(z), uint16(itemID), uint8(stackPos), uint8(index))
		},
	}
	cmd.Flags().IntVar(&x, "x", 0, "tile x")
	cmd.Flags().IntVar(&y, "y", 0, "tile y")
	cmd.Flags().IntVar(&z, "z", 0, "tile z")
	cmd.Flags().IntVar(&itemID, "item", 0, "item id")
	cmd.Flags().IntVar(&stackPos, "stack", 0, "stack position")
	cmd.Flags().IntVar(&index, "index", 0, "container index")
	return cmd
}

func newMoveItemCmd(client func() *Client) *cobra.Command {
	var fromX, fromY, itemID, toX, toY, count int
	var fromZ, stackPos, toZ int
	cmd := &cobra.Command{
		Use:   "move-item",
		Short: "move_item(from, id, stack, to, count): move an item between tiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().MoveItem(
				uint16(fromX), uint16(fromY), uint8(fromZ), uint16(itemID), uint8(stackPos),
				uint16(toX), uint16(toY), uint8(toZ), uint8(count),
			)
		},
	}
	cmd.Flags().IntVar(&fromX, "from-x", 0, "source tile x")
	cmd.Flags().IntVar(&fromY, "from-y", 0, "source tile y")
	cmd.Flags().IntVar(&fromZ, "from-z", 0, "source tile z")
	cmd.Flags().IntVar(&itemID, "item", 0, "item id")
	cmd.Flags().IntVar(&stackPos, "stack", 0, "source stack position")
	cmd.Flags().IntVar(&toX, "to-x", 0, "destination tile x")
	cmd.Flags().IntVar(&toY, "to-y", 0, "destination tile y")
	cmd.Flags().IntVar(&toZ, "to-z", 0, "destination tile z")
	cmd.Flags().IntVar(&count, "count", 1, "item count")
	return cmd
}

func newLookAtCmd(client func() *Client) *cobra.Command {
	var x, y, itemID int
	var z, stackPos int
	cmd := &cobra.Command{
		Use:   "look-at",
		Short: "look_at(x,y,z,id,stack): inspect a tile/item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().LookAt(uint16(x), uint16(y), uint8(z), uint16(itemID), uint8(stackPos))
		},
	}
	cmd.Flags().IntVar(&x, "x", 0, "tile x")
	cmd.Flags().IntVar(&y, "y", 0, "tile y")
	cmd.Flags().IntVar(&z, "z", 0, "tile z")
	cmd.Flags().IntVar(&itemID, "item", 0, "item id")
	cmd.Flags().IntVar(&stackPos, "stack", 0, "stack position")
	return cmd
}

func newSetFightModesCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-fight-modes <fight> <chase> <secure>",
		Short: "set_fight_modes(f,c,s): configure combat stance",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fight, err := parseUint8(args[0])
			if err != nil {
				return err
			}
			chase, err := parseUint8(args[1])
			if err != nil {
				return err
			}
			secure, err := parseUint8(args[2])
			if err != nil {
				return err
			}
			return client().SetFightModes(fight, chase, secure)
		},
	}
}

func newLogoutCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "logout: disconnect the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().Logout()
		},
	}
}

func newToggleActionCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-action <name> <true|false>",
		Short: "toggle_action(name, enabled): enable/disable a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("parse enabled flag %q: %w", args[1], err)
			}
			return client().ToggleAction(args[0], enabled)
		},
	}
}

func newRestartActionCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "restart-action <name>",
		Short: "restart_action(name): reload and restart a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().RestartAction(args[0])
		},
	}
}

func newListActionsCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list-actions",
		Short: "list_actions: show every task's enabled/running state",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := client().GetStatus()
			if err != nil {
				return err
			}
			for _, a := range st.Actions {
				fmt.Printf("%-20s enabled=%-5t running=%t\n", a.Name, a.Enabled, a.Running)
			}
			return nil
		},
	}
}

func newStartRecordingCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "start-recording <name>",
		Short: "start_recording(name): begin recording a navigation trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().StartRecording(args[0])
		},
	}
}

func newStopRecordingCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-recording",
		Short: "stop_recording: stop and persist the active recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().StopRecording()
		},
	}
}

func newPlayRecordingCmd(client func() *Client) *cobra.Command {
	var loop bool
	cmd := &cobra.Command{
		Use:   "play-recording <name>",
		Short: "play_recording(name, loop): compile and play back a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().PlayRecording(args[0], loop)
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "restart from the first node on completion")
	return cmd
}

func newStopPlaybackCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-playback",
		Short: "stop_playback: stop the running playback engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().StopPlayback()
		},
	}
}

func newListRecordingsCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list-recordings",
		Short: "list_recordings: show every persisted recording's name",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := client().ListRecordings()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func newDeleteRecordingCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-recording <name>",
		Short: "delete_recording(name): remove a persisted recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().DeleteRecording(args[0])
		},
	}
}

func newGetStatusCmd(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get-status",
		Short: "get_status: print the current connection/player/creature snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := client().GetStatus()
			if err != nil {
				return err
			}
			fmt.Printf("connected=%t player_id=%#x hp=%d/%d pos=(%d,%d,%d) creatures=%d packets client=%d server=%d\n",
				st.Connected, st.Player.ID, st.Player.HP, st.Player.MaxHP,
				st.Player.X, st.Player.Y, st.Player.Z,
				len(st.Creatures), st.PacketsFromClient, st.PacketsFromServer)
			return nil
		},
	}
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint8(v), nil
}
