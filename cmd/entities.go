// cmd/entities.go - Graph entity lookup commands
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// imageCmd represents the image command
var imageCmd = &cobra.Command{
	Use:   "image ID",
	Short: "Fetch one image entity",
	Long: `Fetch one image from the Graph API as a GeoJSON feature collection.

Only the requested fields are returned; use --fields all for every field.

Examples:
  mapillary image 1933525276802129 --fields captured_at,compass_angle,is_pano
  mapillary image 1933525276802129 --fields all --pretty`,
	Args: cobra.ExactArgs(1),
	RunE: runImage,
}

// mapFeatureCmd represents the map-feature command
var mapFeatureCmd = &cobra.Command{
	Use:   "map-feature ID",
	Short: "Fetch one map feature entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runMapFeature,
}

// detectionsCmd represents the detections command
var detectionsCmd = &cobra.Command{
	Use:   "detections ID",
	Short: "List the detections of an image or map feature",
	Long: `List the detections made on an image, or with --map-feature the detections that
make up a map feature. Geometries are normalized image coordinates in [0,1].

Examples:
  mapillary detections 1933525276802129 --fields value,created_at
  mapillary detections 505190880464965 --map-feature`,
	Args: cobra.ExactArgs(1),
	RunE: runDetections,
}

// organizationCmd represents the organization command
var organizationCmd = &cobra.Command{
	Use:   "organization ID",
	Short: "Fetch one organization",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrganization,
}

// thumbnailCmd represents the thumbnail command
var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail ID",
	Short: "Print the thumbnail URL of an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runThumbnail,
}

// isImageCmd represents the is-image command
var isImageCmd = &cobra.Command{
	Use:   "is-image ID",
	Short: "Report whether an id is an image id",
	Long: `Ask the Graph API whether an id belongs to an image. The answer is one of
image, not_found or wrong_type, or transport_failure when the API could not be
reached.`,
	Args: cobra.ExactArgs(1),
	RunE: runIsImage,
}

func init() {
	rootCmd.AddCommand(imageCmd, mapFeatureCmd, detectionsCmd, organizationCmd, thumbnailCmd, isImageCmd)

	for _, c := range []*cobra.Command{imageCmd, mapFeatureCmd, detectionsCmd, organizationCmd} {
		c.Flags().StringSlice("fields", nil, "fields to request, or all (default: all)")
	}
	detectionsCmd.Flags().Bool("map-feature", false, "ID is a map feature, not an image")
	thumbnailCmd.Flags().String("resolution", "1024", "thumbnail resolution: 256, 1024, 2048, original")
}

// fieldsFlag returns the --fields selection; empty selects every field
func fieldsFlag(cmd *cobra.Command) []string {
	fields, _ := cmd.Flags().GetStringSlice("fields")
	return fields
}

func runImage(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}
	fc, err := rt.client.Image(cmd.Context(), args[0], fieldsFlag(cmd)...)
	if err != nil {
		return err
	}
	return rt.writeCollection(cmd, fc)
}

func runMapFeature(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}
	fc, err := rt.client.MapFeature(cmd.Context(), args[0], fieldsFlag(cmd)...)
	if err != nil {
		return err
	}
	return rt.writeCollection(cmd, fc)
}

func runDetections(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}

	fields := fieldsFlag(cmd)
	detect := rt.client.ImageDetections
	if mf, _ := cmd.Flags().GetBool("map-feature"); mf {
		detect = rt.client.MapFeatureDetections
	}
	fc, err := detect(cmd.Context(), args[0], fields...)
	if err != nil {
		return err
	}
	rt.logger.Info().Str("id", args[0]).Int("detections", len(fc.Features)).Msg("detections fetched")
	return rt.writeCollection(cmd, fc)
}

func runOrganization(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}
	org, err := rt.client.Organization(cmd.Context(), args[0], fieldsFlag(cmd)...)
	if err != nil {
		return err
	}
	return rt.writeValue(cmd, org)
}

func runThumbnail(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}
	resolution, _ := cmd.Flags().GetString("resolution")
	u, err := rt.client.ImageThumbnail(cmd.Context(), args[0], resolution)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
	return err
}

func runIsImage(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}
	probe, err := rt.client.ProbeImageID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if probe.Err != nil {
		rt.logger.Debug().Err(probe.Err).Str("id", args[0]).Msg("probe answer")
	}
	return rt.writeValue(cmd, struct {
		ID      string `json:"id"`
		IsImage bool   `json:"is_image"`
		Kind    string `json:"kind"`
	}{ID: args[0], IsImage: probe.IsImage(), Kind: probe.Kind.String()})
}
