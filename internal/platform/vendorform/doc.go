// Package vendorform reads the convention's public vendor registration page.
//
// Each registered vendor is rendered as a form element:
//
//	<form class="vendor" data-id="v-12" data-name="Ink Fox" data-table="B12">
//	  <input name="website" value="https://inkfox.example">
//	  <input name="handle" value="@inkfox">
//	  <img src="/gallery/inkfox-1.jpg">
//	</form>
//
// Attributes on the form win over inputs of the same name. Relative image
// sources are resolved against the page URL.
package vendorform
